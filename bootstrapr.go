// Package bootstrapr boots a container's interdependent local services:
// each stateful dependency is started in bootstrap mode, polled until
// ready, provisioned idempotently, and stopped; then the full process
// table is handed to an embedded supervisor that keeps everything running
// until shutdown. The package is a thin facade for embedding; the
// bootstrapr CLI is the same surface driven from a TOML file.
package bootstrapr

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/bootstrapr/internal/appinit"
	"github.com/loykin/bootstrapr/internal/bootstrap"
	cfg "github.com/loykin/bootstrapr/internal/config"
	"github.com/loykin/bootstrapr/internal/journal"
	"github.com/loykin/bootstrapr/internal/journal/factory"
	"github.com/loykin/bootstrapr/internal/lifecycle"
	"github.com/loykin/bootstrapr/internal/logger"
	"github.com/loykin/bootstrapr/internal/metrics"
	"github.com/loykin/bootstrapr/internal/probe"
	"github.com/loykin/bootstrapr/internal/process"
	"github.com/loykin/bootstrapr/internal/provision"
	"github.com/loykin/bootstrapr/internal/server"
	"github.com/loykin/bootstrapr/internal/supervise"
)

// Re-export core types for external consumers. These are aliases so
// conversions are zero-cost.

type Spec = process.Spec

type Status = process.Status

type Dependency = lifecycle.Dependency

type FactsProvider = lifecycle.FactsProvider

type Fact = provision.Fact

type Prober = probe.Prober

type ProberFunc = probe.ProberFunc

type Poller = probe.Poller

type Outcome = bootstrap.Outcome

type Initializer = appinit.Initializer

type JournalSink = journal.Sink

type LogConfig = logger.Config

// Bootstrap wires the orchestrator and supervisor behind one embedding
// surface.
type Bootstrap struct {
	orch    *bootstrap.Orchestrator
	log     *slog.Logger
	journal *journal.Recorder

	sup *supervise.Supervisor
}

// Option configures a Bootstrap.
type Option func(*Bootstrap)

func WithLogger(log *slog.Logger) Option {
	return func(b *Bootstrap) { b.log = log }
}

func WithEnv(kvs []string) Option {
	return func(b *Bootstrap) { b.orch.Env = kvs }
}

func WithInitializer(init Initializer) Option {
	return func(b *Bootstrap) { b.orch.Initializer = init }
}

func WithJournal(sinks ...JournalSink) Option {
	return func(b *Bootstrap) { b.journal = journal.NewRecorder(b.log, sinks...) }
}

// New builds a Bootstrap from dependencies and application process specs.
func New(deps []Dependency, apps []Spec, opts ...Option) *Bootstrap {
	b := &Bootstrap{orch: &bootstrap.Orchestrator{Dependencies: deps, Apps: apps}}
	for _, o := range opts {
		o(b)
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	b.orch.Log = b.log
	b.orch.Journal = b.journal
	return b
}

// Run performs the whole sequence: bootstrap every dependency, run the
// initializer, hand the process table to the supervisor, and block until
// ctx is cancelled. On a fatal outcome Run returns without supervising.
func (b *Bootstrap) Run(ctx context.Context) (Outcome, error) {
	table, out := b.orch.Run(ctx)
	if out.Fatal() {
		return out, out.Err
	}
	sup, err := supervise.New(table, b.orch.Env, b.log)
	if err != nil {
		return out, err
	}
	b.sup = sup
	return out, sup.Run(ctx)
}

// Statuses reports supervised process snapshots; empty before handoff.
func (b *Bootstrap) Statuses() []supervise.ChildStatus {
	if b.sup == nil {
		return nil
	}
	return b.sup.Statuses()
}

// Handler returns the read-only HTTP surface (status, healthz, metrics).
// Valid once Run has reached the supervision phase.
func (b *Bootstrap) Handler(basePath string) http.Handler {
	return server.NewRouter(b, basePath)
}

// LoadConfig reads and validates a TOML configuration file.
func LoadConfig(path string) (*cfg.Config, error) { return cfg.Load(path) }

// NewJournalSink builds a journal sink from a DSN
// (sqlite://, postgres://, clickhouse://).
func NewJournalSink(dsn string) (JournalSink, error) { return factory.NewSink(dsn) }

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
