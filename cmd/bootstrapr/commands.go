package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/bootstrapr/internal/bootstrap"
	"github.com/loykin/bootstrapr/internal/config"
	"github.com/loykin/bootstrapr/internal/journal"
	"github.com/loykin/bootstrapr/internal/journal/factory"
	"github.com/loykin/bootstrapr/internal/logger"
	"github.com/loykin/bootstrapr/internal/metrics"
	"github.com/loykin/bootstrapr/internal/server"
	"github.com/loykin/bootstrapr/internal/supervise"
	"github.com/prometheus/client_golang/prometheus"
)

// runUp is the container entrypoint path: bootstrap, then supervise until
// SIGINT/SIGTERM.
func runUp(flags *UpFlags) error {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if flags.LogLevel != "" {
		level = flags.LogLevel
	}
	log := logger.NewSlog(level, !flags.NoColor)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed", "error", err)
	}

	lockPath := flags.LockPath
	if lockPath == "" {
		stateDir := cfg.StateDir
		if stateDir == "" {
			stateDir = "."
		}
		lockPath = filepath.Join(stateDir, "bootstrap.lock")
	}
	lock, err := bootstrap.AcquireLock(lockPath)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	envTable, err := cfg.EnvTable()
	if err != nil {
		return err
	}
	deps, err := cfg.MaterializeDependencies()
	if err != nil {
		return err
	}

	var sinks []journal.Sink
	for _, dsn := range cfg.Journal.DSNs {
		sink, err := factory.NewSink(dsn)
		if err != nil {
			log.Warn("journal sink unavailable", "dsn", dsn, "error", err)
			continue
		}
		sinks = append(sinks, sink)
	}
	rec := journal.NewRecorder(log, sinks...)
	defer rec.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := &bootstrap.Orchestrator{
		Dependencies: deps,
		Apps:         cfg.MaterializeProcesses(),
		Initializer:  cfg.MaterializeInitializer(),
		Env:          envTable.Merge(nil),
		Log:          log,
		Journal:      rec,
	}
	table, out := orch.Run(ctx)
	if out.Fatal() {
		log.Error("bootstrap failed", "outcome", out.String())
		return fmt.Errorf("bootstrap: %s", out.String())
	}
	log.Info("bootstrap complete", "outcome", out.String(), "processes", len(table))

	sup, err := supervise.New(table, orch.Env, log)
	if err != nil {
		return err
	}

	if cfg.HTTP.Listen != "" {
		router := server.NewRouter(sup, cfg.HTTP.BasePath)
		go func() {
			if err := server.Serve(cfg.HTTP.Listen, router); err != nil {
				log.Warn("status server stopped", "error", err)
			}
		}()
		log.Info("status server listening", "addr", cfg.HTTP.Listen)
	}

	// Blocks until the signal context is cancelled. Bootstrap logic never
	// runs again in this process.
	return sup.Run(ctx)
}

func runValidate(cmd *cobra.Command, flags *ValidateFlags) error {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	cmd.Printf("configuration valid: %d dependencies, %d processes\n",
		len(cfg.Dependencies), len(cfg.Processes))
	return nil
}
