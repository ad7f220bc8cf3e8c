// Package config loads the bootstrap's single TOML file once at startup
// into an immutable Config. No component reads ambient configuration; the
// materialized values are passed into constructors explicitly.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/bootstrapr/internal/appinit"
	"github.com/loykin/bootstrapr/internal/env"
	"github.com/loykin/bootstrapr/internal/lifecycle"
	"github.com/loykin/bootstrapr/internal/logger"
	"github.com/loykin/bootstrapr/internal/probe"
	"github.com/loykin/bootstrapr/internal/process"
	"github.com/loykin/bootstrapr/internal/provision"
)

// Defaults for readiness polling when a dependency does not set its own.
const (
	DefaultProbeAttempts = 30
	DefaultProbeInterval = time.Second
	DefaultStopWait      = 10 * time.Second
)

// Config is the top-level TOML structure.
type Config struct {
	StateDir string   `toml:"state_dir" mapstructure:"state_dir"`
	LogLevel string   `toml:"log_level" mapstructure:"log_level"`
	Env      []string `toml:"env" mapstructure:"env"`
	EnvFiles []string `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv bool     `toml:"use_os_env" mapstructure:"use_os_env"`

	Log     *logger.Config `toml:"log" mapstructure:"log"`
	Journal JournalConfig  `toml:"journal" mapstructure:"journal"`
	HTTP    HTTPConfig     `toml:"http" mapstructure:"http"`

	Dependencies []DependencyConfig `toml:"dependencies" mapstructure:"dependencies"`
	Processes    []ProcessConfig    `toml:"processes" mapstructure:"processes"`
	Initializer  *InitializerConfig `toml:"initializer" mapstructure:"initializer"`
}

type JournalConfig struct {
	DSNs []string `toml:"dsns" mapstructure:"dsns"`
}

type HTTPConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type ProbeConfig struct {
	Type        string        `toml:"type" mapstructure:"type"` // command | postgres
	Command     string        `toml:"command" mapstructure:"command"`
	DSN         string        `toml:"dsn" mapstructure:"dsn"`
	MaxAttempts int           `toml:"max_attempts" mapstructure:"max_attempts"`
	Interval    time.Duration `toml:"interval" mapstructure:"interval"`
}

type FactConfig struct {
	Type     string `toml:"type" mapstructure:"type"` // role | database | command
	Name     string `toml:"name" mapstructure:"name"`
	Role     string `toml:"role" mapstructure:"role"`
	Password string `toml:"password" mapstructure:"password"`
	Database string `toml:"database" mapstructure:"database"`
	Owner    string `toml:"owner" mapstructure:"owner"`
	Check    string `toml:"check" mapstructure:"check"`
	Apply    string `toml:"apply" mapstructure:"apply"`
}

type DependencyConfig struct {
	Name             string         `toml:"name" mapstructure:"name"`
	DataDir          string         `toml:"data_dir" mapstructure:"data_dir"`
	InitMarker       string         `toml:"init_marker" mapstructure:"init_marker"`
	InitCommand      string         `toml:"init_command" mapstructure:"init_command"`
	BootstrapCommand string         `toml:"bootstrap_command" mapstructure:"bootstrap_command"`
	ServeCommand     string         `toml:"serve_command" mapstructure:"serve_command"`
	StopWait         time.Duration  `toml:"stop_wait" mapstructure:"stop_wait"`
	AdminDSN         string         `toml:"admin_dsn" mapstructure:"admin_dsn"`
	Env              []string       `toml:"env" mapstructure:"env"`
	Probe            ProbeConfig    `toml:"probe" mapstructure:"probe"`
	Facts            []FactConfig   `toml:"facts" mapstructure:"facts"`
	Log              *logger.Config `toml:"log" mapstructure:"log"`
}

type ProcessConfig struct {
	Name            string         `toml:"name" mapstructure:"name"`
	Command         string         `toml:"command" mapstructure:"command"`
	WorkDir         string         `toml:"workdir" mapstructure:"workdir"`
	Env             []string       `toml:"env" mapstructure:"env"`
	RestartInterval time.Duration  `toml:"restart_interval" mapstructure:"restart_interval"`
	Log             *logger.Config `toml:"log" mapstructure:"log"`
}

type InitializerConfig struct {
	Type    string        `toml:"type" mapstructure:"type"` // command | migrations
	Command string        `toml:"command" mapstructure:"command"`
	WorkDir string        `toml:"workdir" mapstructure:"workdir"`
	Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
	Dir     string        `toml:"dir" mapstructure:"dir"` // migrations directory
	DSN     string        `toml:"dsn" mapstructure:"dsn"` // migrations target
}

// Load reads and validates the TOML file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks cross-field requirements before anything is started.
func (c *Config) Validate() error {
	if len(c.Dependencies) == 0 && len(c.Processes) == 0 {
		return fmt.Errorf("config: no dependencies or processes defined")
	}
	seen := map[string]struct{}{}
	for i := range c.Dependencies {
		d := &c.Dependencies[i]
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("config: dependency %d: name is required", i)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("config: duplicate name %q", d.Name)
		}
		seen[d.Name] = struct{}{}
		if strings.TrimSpace(d.BootstrapCommand) == "" {
			return fmt.Errorf("config: dependency %s: bootstrap_command is required", d.Name)
		}
		if strings.TrimSpace(d.ServeCommand) == "" {
			return fmt.Errorf("config: dependency %s: serve_command is required", d.Name)
		}
		switch d.Probe.Type {
		case "", "command":
			if strings.TrimSpace(d.Probe.Command) == "" {
				return fmt.Errorf("config: dependency %s: probe.command is required", d.Name)
			}
		case "postgres":
			if d.Probe.DSN == "" && d.AdminDSN == "" {
				return fmt.Errorf("config: dependency %s: postgres probe needs a dsn", d.Name)
			}
		default:
			return fmt.Errorf("config: dependency %s: unknown probe type %q", d.Name, d.Probe.Type)
		}
		for j, f := range d.Facts {
			switch f.Type {
			case "role":
				if f.Role == "" {
					return fmt.Errorf("config: dependency %s: fact %d: role is required", d.Name, j)
				}
				if d.AdminDSN == "" {
					return fmt.Errorf("config: dependency %s: SQL facts need admin_dsn", d.Name)
				}
			case "database":
				if f.Database == "" {
					return fmt.Errorf("config: dependency %s: fact %d: database is required", d.Name, j)
				}
				if d.AdminDSN == "" {
					return fmt.Errorf("config: dependency %s: SQL facts need admin_dsn", d.Name)
				}
			case "command":
				if f.Apply == "" {
					return fmt.Errorf("config: dependency %s: fact %d: apply is required", d.Name, j)
				}
			default:
				return fmt.Errorf("config: dependency %s: fact %d: unknown type %q", d.Name, j, f.Type)
			}
		}
	}
	for i, p := range c.Processes {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("config: process %d: name is required", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("config: duplicate name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if strings.TrimSpace(p.Command) == "" {
			return fmt.Errorf("config: process %s: command is required", p.Name)
		}
	}
	if c.Initializer != nil {
		switch c.Initializer.Type {
		case "command":
			if c.Initializer.Command == "" {
				return fmt.Errorf("config: initializer: command is required")
			}
		case "migrations":
			if c.Initializer.Dir == "" || c.Initializer.DSN == "" {
				return fmt.Errorf("config: initializer: migrations need dir and dsn")
			}
		default:
			return fmt.Errorf("config: initializer: unknown type %q", c.Initializer.Type)
		}
	}
	return nil
}

// EnvTable composes the global environment layer: OS env (when enabled),
// then env_files in order, then the top-level env list last.
func (c *Config) EnvTable() (*env.Table, error) {
	t := env.New(c.UseOSEnv)
	for _, p := range c.EnvFiles {
		kvs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		t.SetAll(kvs)
	}
	t.SetAll(c.Env)
	return t, nil
}

// loadEnvFile parses KEY=VALUE lines; blank lines and # comments skipped.
func loadEnvFile(path string) ([]string, error) {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			out = append(out, strings.TrimSpace(line[:i])+"="+strings.TrimSpace(line[i+1:]))
		}
	}
	return out, nil
}

func (c *Config) logFor(override *logger.Config) logger.Config {
	var lc logger.Config
	if c.Log != nil {
		lc = *c.Log
	}
	if override != nil {
		lc = *override
	}
	return lc
}

// MaterializeDependencies converts dependency configs into runnable
// lifecycle dependencies, wiring probers and fact providers.
func (c *Config) MaterializeDependencies() ([]lifecycle.Dependency, error) {
	out := make([]lifecycle.Dependency, 0, len(c.Dependencies))
	for i := range c.Dependencies {
		d := c.Dependencies[i]
		dep := lifecycle.Dependency{
			Name:        d.Name,
			DataDir:     d.DataDir,
			InitMarker:  d.InitMarker,
			InitCommand: d.InitCommand,
			StopWait:    durOr(d.StopWait, DefaultStopWait),
			Bootstrap: process.Spec{
				Name:    d.Name + "-bootstrap",
				Command: d.BootstrapCommand,
				Env:     d.Env,
				Log:     c.logFor(d.Log),
			},
			Serve: process.Spec{
				Name:    d.Name,
				Command: d.ServeCommand,
				Env:     d.Env,
				Log:     c.logFor(d.Log),
			},
			Poller: probe.Poller{
				MaxAttempts: intOr(d.Probe.MaxAttempts, DefaultProbeAttempts),
				Interval:    durOr(d.Probe.Interval, DefaultProbeInterval),
			},
		}
		switch d.Probe.Type {
		case "postgres":
			dsn := d.Probe.DSN
			if dsn == "" {
				dsn = d.AdminDSN
			}
			dep.Prober = probe.PostgresProber{DSN: dsn}
		default:
			dep.Prober = probe.CommandProber{Command: d.Probe.Command, Env: d.Env}
		}
		if len(d.Facts) > 0 {
			dep.Facts = factsProvider(d)
		}
		out = append(out, dep)
	}
	return out, nil
}

// factsProvider builds the ordered fact list when the dependency is ready.
// SQL facts share one admin connection, dialed lazily and released by the
// returned cleanup before the bootstrap-mode instance is stopped.
func factsProvider(d DependencyConfig) lifecycle.FactsProvider {
	return func(ctx context.Context) ([]provision.Fact, func(context.Context), error) {
		var admin *provision.PGAdmin
		cleanup := func(ctx context.Context) {
			if admin != nil {
				_ = admin.Close(ctx)
			}
		}
		facts := make([]provision.Fact, 0, len(d.Facts))
		for _, f := range d.Facts {
			switch f.Type {
			case "role", "database":
				if admin == nil {
					a, err := provision.DialPGAdmin(ctx, d.AdminDSN)
					if err != nil {
						return nil, nil, err
					}
					admin = a
				}
				if f.Type == "role" {
					facts = append(facts, admin.EnsureRole(f.Role, f.Password))
				} else {
					facts = append(facts, admin.EnsureDatabase(f.Database, f.Owner))
				}
			case "command":
				name := f.Name
				if name == "" {
					name = "command fact " + f.Apply
				}
				facts = append(facts, provision.CommandFact(name, f.Check, f.Apply, d.Env))
			}
		}
		return facts, cleanup, nil
	}
}

// MaterializeProcesses converts application process configs into specs for
// the process table.
func (c *Config) MaterializeProcesses() []process.Spec {
	out := make([]process.Spec, 0, len(c.Processes))
	for _, p := range c.Processes {
		out = append(out, process.Spec{
			Name:            p.Name,
			Command:         p.Command,
			WorkDir:         p.WorkDir,
			Env:             p.Env,
			RestartInterval: p.RestartInterval,
			Log:             c.logFor(p.Log),
		})
	}
	return out
}

// MaterializeInitializer returns the configured application initializer,
// or nil when none is configured.
func (c *Config) MaterializeInitializer() appinit.Initializer {
	if c.Initializer == nil {
		return nil
	}
	switch c.Initializer.Type {
	case "migrations":
		return &appinit.MigrateInitializer{
			SourceDir: c.Initializer.Dir,
			DSN:       c.Initializer.DSN,
		}
	default:
		return &appinit.CommandInitializer{
			Command: c.Initializer.Command,
			WorkDir: c.Initializer.WorkDir,
			Timeout: c.Initializer.Timeout,
		}
	}
}

func durOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
