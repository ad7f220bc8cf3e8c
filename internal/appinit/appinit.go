// Package appinit runs the application-level setup step after all
// dependencies are provisioned: the app's own initialize command, or a SQL
// migration directory. The orchestrator logs and swallows failures here by
// policy, since refusing to start the whole application over a non-essential
// initialization step is judged worse for availability.
package appinit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/loykin/bootstrapr/internal/process"
)

// Initializer is one opaque application setup step.
type Initializer interface {
	Name() string
	Run(ctx context.Context) error
}

// CommandInitializer executes the application's setup command once (the
// classic "python initialize.py" step).
type CommandInitializer struct {
	Label   string
	Command string
	WorkDir string
	Env     []string
	Timeout time.Duration
}

func (c *CommandInitializer) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return "command"
}

func (c *CommandInitializer) Run(ctx context.Context) error {
	if strings.TrimSpace(c.Command) == "" {
		return errors.New("appinit: empty command")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	p := process.New(process.Spec{
		Name:    "appinit-" + c.Name(),
		Command: c.Command,
		WorkDir: c.WorkDir,
	})
	if err := p.Start(c.Env); err != nil {
		return err
	}
	done := p.WaitDone()
	select {
	case <-done:
	case <-time.After(timeout):
		_ = p.Stop(5 * time.Second)
		return fmt.Errorf("appinit %s: timed out after %s", c.Name(), timeout)
	case <-ctx.Done():
		_ = p.Stop(5 * time.Second)
		return ctx.Err()
	}
	return p.Wait()
}

// MigrateInitializer applies file-based SQL migrations to the freshly
// provisioned database. A directory with no pending migrations is success.
type MigrateInitializer struct {
	Label     string
	SourceDir string // directory of .sql migration files
	DSN       string // postgres://... (rewritten for the pgx driver)
}

func (m *MigrateInitializer) Name() string {
	if m.Label != "" {
		return m.Label
	}
	return "migrations"
}

func (m *MigrateInitializer) Run(_ context.Context) error {
	if m.SourceDir == "" || m.DSN == "" {
		return errors.New("appinit: migrations need source dir and dsn")
	}
	mg, err := migrate.New("file://"+m.SourceDir, pgxURL(m.DSN))
	if err != nil {
		return fmt.Errorf("appinit %s: %w", m.Name(), err)
	}
	defer func() { _, _ = mg.Close() }()
	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("appinit %s: %w", m.Name(), err)
	}
	return nil
}

// pgxURL maps a postgres:// DSN onto golang-migrate's pgx/v5 driver scheme.
func pgxURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
