// Package bootstrap orchestrates the whole cold-start sequence: each
// dependency's bootstrap lifecycle in declared order, the application
// initializer, and finally the assembly of the process table handed to the
// supervisor. The orchestrator itself never restarts anything.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loykin/bootstrapr/internal/appinit"
	"github.com/loykin/bootstrapr/internal/journal"
	"github.com/loykin/bootstrapr/internal/lifecycle"
	"github.com/loykin/bootstrapr/internal/process"
	"github.com/loykin/bootstrapr/internal/provision"
	"github.com/loykin/bootstrapr/internal/supervise"
)

// OutcomeKind is the terminal classification of one bootstrap run.
type OutcomeKind string

const (
	Success            OutcomeKind = "success"
	DependencyUnready  OutcomeKind = "dependency-unready"
	ProvisioningFailed OutcomeKind = "provisioning-failed"
	DependencyFailed   OutcomeKind = "dependency-failed"
	Aborted            OutcomeKind = "aborted"
)

// Outcome summarizes a bootstrap run. InitializerErr is informational: a
// failed initializer does not prevent the handoff.
type Outcome struct {
	Kind           OutcomeKind
	Dependency     string
	Fact           string
	Err            error
	InitializerErr error
}

func (o Outcome) Fatal() bool { return o.Kind != Success }

func (o Outcome) String() string {
	switch {
	case o.Kind == Success && o.InitializerErr != nil:
		return fmt.Sprintf("success (initializer failed: %v)", o.InitializerErr)
	case o.Kind == Success:
		return "success"
	case o.Dependency != "":
		return fmt.Sprintf("%s: dependency %s: %v", o.Kind, o.Dependency, o.Err)
	default:
		return fmt.Sprintf("%s: %v", o.Kind, o.Err)
	}
}

// Orchestrator runs the one-shot bootstrap sequence.
type Orchestrator struct {
	Dependencies []lifecycle.Dependency
	Apps         []process.Spec
	Initializer  appinit.Initializer // optional
	Env          []string
	Log          *slog.Logger
	Journal      *journal.Recorder // optional
}

// Run brings every dependency through its lifecycle in order, runs the
// application initializer, and returns the final process table together
// with the outcome. The table is non-nil only on success.
func (o *Orchestrator) Run(ctx context.Context) ([]process.Spec, Outcome) {
	log := o.Log
	if log == nil {
		log = slog.Default()
	}

	for _, dep := range o.Dependencies {
		lc := lifecycle.New(dep, o.Env, log, o.transitionHook(ctx))
		lc.SetJournal(o.Journal)
		if err := lc.Run(ctx); err != nil {
			out := classify(dep.Name, err)
			o.Journal.Outcome(ctx, out.String())
			return nil, out
		}
	}

	var initErr error
	if o.Initializer != nil {
		log.Info("running application initializer", "initializer", o.Initializer.Name())
		if initErr = o.Initializer.Run(ctx); initErr != nil {
			// Policy: initializer failures are reported, never fatal.
			log.Error("application initializer failed, continuing to handoff",
				"initializer", o.Initializer.Name(), "error", initErr)
		}
	}

	deps := make([]process.Spec, 0, len(o.Dependencies))
	for _, d := range o.Dependencies {
		deps = append(deps, d.Serve)
	}
	table, err := supervise.BuildTable(deps, o.Apps)
	if err != nil {
		out := Outcome{Kind: Aborted, Err: err, InitializerErr: initErr}
		o.Journal.Outcome(ctx, out.String())
		return nil, out
	}

	out := Outcome{Kind: Success, InitializerErr: initErr}
	o.Journal.Outcome(ctx, out.String())
	return table, out
}

// transitionHook forwards lifecycle state changes to the journal.
func (o *Orchestrator) transitionHook(ctx context.Context) func(string, lifecycle.State, lifecycle.State) {
	if o.Journal == nil {
		return nil
	}
	return func(dep string, from, to lifecycle.State) {
		o.Journal.Transition(ctx, dep, from.String(), to.String())
	}
}

// classify maps a lifecycle error onto the outcome taxonomy. Cancellation
// is checked first: a poll cut short by container shutdown wraps ctx.Err()
// in an UnreadyError, and shutdown must not read as an unready dependency.
func classify(dep string, err error) Outcome {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: Aborted, Dependency: dep, Err: err}
	}
	var unready *lifecycle.UnreadyError
	if errors.As(err, &unready) {
		return Outcome{Kind: DependencyUnready, Dependency: dep, Err: err}
	}
	var factErr *provision.FactError
	if errors.As(err, &factErr) {
		return Outcome{Kind: ProvisioningFailed, Dependency: dep, Fact: factErr.Fact, Err: err}
	}
	return Outcome{Kind: DependencyFailed, Dependency: dep, Err: err}
}
