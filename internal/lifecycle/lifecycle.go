// Package lifecycle drives one dependency through its bootstrap sequence:
// start in bootstrap mode, poll until ready, provision idempotently, stop
// cleanly. Readiness and provisioning failures are fatal for the bootstrap;
// a failure to stop the temporary instance is logged and tolerated, since
// the supervised long-running start does not depend on how the previous
// instance exited.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/bootstrapr/internal/journal"
	"github.com/loykin/bootstrapr/internal/metrics"
	"github.com/loykin/bootstrapr/internal/probe"
	"github.com/loykin/bootstrapr/internal/process"
	"github.com/loykin/bootstrapr/internal/provision"
)

// State of the per-dependency machine. Transitions are strictly forward;
// Failed is terminal.
type State int32

const (
	NotStarted State = iota
	StartingBootstrap
	AwaitingReady
	Provisioning
	StoppingBootstrap
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case StartingBootstrap:
		return "starting-bootstrap"
	case AwaitingReady:
		return "awaiting-ready"
	case Provisioning:
		return "provisioning"
	case StoppingBootstrap:
		return "stopping-bootstrap"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// FactsProvider builds the provisioning facts once the dependency is ready.
// SQL facts need a live admin connection that only exists at that point;
// the returned cleanup releases it before the bootstrap instance is stopped.
type FactsProvider func(ctx context.Context) (facts []provision.Fact, cleanup func(context.Context), err error)

// Dependency is the static description of one stateful service to bring up.
// Identity is Name; the value is never mutated after construction.
type Dependency struct {
	Name        string
	DataDir     string
	InitMarker  string // file whose presence marks a previously initialized store
	InitCommand string // first-boot initialization (e.g. initdb); skipped when the marker exists
	Bootstrap   process.Spec
	Serve       process.Spec // long-running mode; consumed only by the handoff
	StopWait    time.Duration
	Prober      probe.Prober
	Poller      probe.Poller
	Facts       FactsProvider
}

// UnreadyError: the readiness budget was exhausted. Fatal for the whole
// bootstrap; the rest of the system needs this dependency.
type UnreadyError struct {
	Dependency string
	Cause      error
}

func (e *UnreadyError) Error() string {
	return fmt.Sprintf("dependency %s never became ready: %v", e.Dependency, e.Cause)
}

func (e *UnreadyError) Unwrap() error { return e.Cause }

// Lifecycle runs the machine for one dependency. Single-threaded: Run is
// called once, synchronously, per process lifetime.
type Lifecycle struct {
	dep          Dependency
	env          []string
	log          *slog.Logger
	onTransition func(dep string, from, to State)
	journal      *journal.Recorder

	state State
	proc  *process.Process
}

func New(dep Dependency, env []string, log *slog.Logger, onTransition func(string, State, State)) *Lifecycle {
	if log == nil {
		log = slog.Default()
	}
	return &Lifecycle{dep: dep, env: env, log: log.With("dependency", dep.Name), onTransition: onTransition}
}

// SetJournal attaches a bootstrap journal recorder. Nil is valid; the
// recorder itself is nil-safe.
func (l *Lifecycle) SetJournal(rec *journal.Recorder) { l.journal = rec }

func (l *Lifecycle) State() State { return l.state }

func (l *Lifecycle) Dependency() Dependency { return l.dep }

// Run executes start → ready → provision → stop. On return with a nil
// error the dependency's data directory is provisioned and no process holds
// it open, so the supervisor may start the long-running mode.
func (l *Lifecycle) Run(ctx context.Context) error {
	l.to(StartingBootstrap)
	if err := l.maybeInitialize(ctx); err != nil {
		return l.fail(fmt.Errorf("dependency %s: initialize: %w", l.dep.Name, err))
	}
	if err := l.startBootstrap(); err != nil {
		return l.fail(fmt.Errorf("dependency %s: %w", l.dep.Name, err))
	}

	l.to(AwaitingReady)
	res, err := l.poll(ctx)
	if res != probe.Ready {
		l.stopBestEffort()
		return l.fail(&UnreadyError{Dependency: l.dep.Name, Cause: err})
	}

	l.to(Provisioning)
	if err := l.provision(ctx); err != nil {
		l.stopBestEffort()
		return l.fail(fmt.Errorf("dependency %s: %w", l.dep.Name, err))
	}

	l.to(StoppingBootstrap)
	if err := l.proc.Stop(l.dep.StopWait); err != nil {
		// Deliberately non-fatal: blocking the bootstrap on an unresponsive
		// temporary instance is worse than proceeding; crash recovery covers
		// the supervised start.
		l.log.Warn("bootstrap-mode stop did not complete cleanly", "error", err)
	}
	l.to(Stopped)
	return nil
}

// maybeInitialize runs the first-boot initialization step unless the
// persistent store carries the initialization marker (warm boot).
func (l *Lifecycle) maybeInitialize(ctx context.Context) error {
	if l.dep.InitCommand == "" {
		return nil
	}
	if l.dep.InitMarker != "" {
		if _, err := os.Stat(l.dep.InitMarker); err == nil {
			l.log.Debug("store already initialized, skipping init step", "marker", l.dep.InitMarker)
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.log.Info("initializing persistent store", "data_dir", l.dep.DataDir)
	init := process.New(process.Spec{
		Name:    l.dep.Name + "-init",
		Command: l.dep.InitCommand,
		WorkDir: l.dep.DataDir,
	})
	if err := init.Start(l.env); err != nil {
		return err
	}
	return init.Wait()
}

func (l *Lifecycle) startBootstrap() error {
	spec := l.dep.Bootstrap
	if spec.Name == "" {
		spec.Name = l.dep.Name + "-bootstrap"
	}
	l.proc = process.New(spec)
	l.log.Info("starting in bootstrap mode")
	return l.proc.Start(l.env)
}

func (l *Lifecycle) poll(ctx context.Context) (probe.Result, error) {
	poller := l.dep.Poller
	attempts := 0
	observe := poller.Observe
	poller.Observe = func(a probe.Attempt) {
		attempts = a.Number
		metrics.IncReadinessAttempt(l.dep.Name)
		if a.Err != nil {
			l.log.Debug("readiness probe failed", "attempt", a.Number, "error", a.Err)
		}
		if observe != nil {
			observe(a)
		}
	}
	res, err := poller.Poll(ctx, l.dep.Prober)
	if res == probe.Exhausted {
		metrics.IncReadinessExhausted(l.dep.Name)
	}
	l.journal.Record(ctx, journal.Event{
		Type:       journal.EventReadiness,
		Dependency: l.dep.Name,
		Detail:     fmt.Sprintf("%s after %d attempts", res, attempts),
	})
	return res, err
}

func (l *Lifecycle) provision(ctx context.Context) error {
	if l.dep.Facts == nil {
		return nil
	}
	facts, cleanup, err := l.dep.Facts(ctx)
	if err != nil {
		return fmt.Errorf("facts: %w", err)
	}
	if cleanup != nil {
		defer cleanup(ctx)
	}
	res, err := provision.Apply(ctx, l.log, facts)
	if err != nil {
		return err
	}
	metrics.AddFactsApplied(l.dep.Name, res.Applied)
	metrics.AddFactsSkipped(l.dep.Name, res.Skipped)
	l.journal.Record(ctx, journal.Event{
		Type:       journal.EventProvision,
		Dependency: l.dep.Name,
		Detail:     fmt.Sprintf("applied=%d skipped=%d", res.Applied, res.Skipped),
	})
	l.log.Info("provisioning complete", "applied", res.Applied, "skipped", res.Skipped)
	return nil
}

// stopBestEffort tears down the bootstrap-mode child on the failure and
// cancellation paths. The error (if any) is already being reported.
func (l *Lifecycle) stopBestEffort() {
	if l.proc == nil {
		return
	}
	wait := l.dep.StopWait
	if wait <= 0 || wait > 5*time.Second {
		wait = 5 * time.Second
	}
	if err := l.proc.Stop(wait); err != nil {
		l.log.Warn("best-effort stop failed", "error", err)
	}
}

func (l *Lifecycle) to(next State) {
	from := l.state
	l.state = next
	metrics.SetDependencyState(l.dep.Name, next.String())
	l.log.Debug("state transition", "from", from.String(), "to", next.String())
	if l.onTransition != nil {
		l.onTransition(l.dep.Name, from, next)
	}
}

func (l *Lifecycle) fail(err error) error {
	l.to(Failed)
	return err
}
