// Package provision applies ordered, idempotent provisioning facts against
// a started-but-not-yet-supervised dependency. Each fact is a check-then-act
// pair: the check is side-effect-free, the apply runs only when the check
// says the fact does not hold yet, so repeating a whole sequence is safe.
//
// Facts are never reordered or parallelized: later facts may depend on
// earlier ones (a database's owner role must exist first). The check/apply
// pair is not cross-process locked; this path runs once per container
// lifetime before any concurrent writer exists.
package provision

import (
	"context"
	"fmt"
	"log/slog"
)

// Fact is one idempotent assertion, e.g. "role gavel exists".
type Fact struct {
	Name  string
	Check func(ctx context.Context) (bool, error)
	Apply func(ctx context.Context) error
}

// FactError reports which fact failed and why. Processing stops at the
// first failure; earlier applied facts are kept as-is (no rollback).
type FactError struct {
	Fact  string
	Cause error
}

func (e *FactError) Error() string {
	return fmt.Sprintf("provisioning fact %q: %v", e.Fact, e.Cause)
}

func (e *FactError) Unwrap() error { return e.Cause }

// Result summarizes one Apply pass.
type Result struct {
	Applied int
	Skipped int
}

// Apply runs the facts strictly in order. A check that reports the fact
// already holds short-circuits its apply. The first apply (or check) error
// stops the pass and is returned as a *FactError.
func Apply(ctx context.Context, log *slog.Logger, facts []Fact) (Result, error) {
	if log == nil {
		log = slog.Default()
	}
	var res Result
	for _, f := range facts {
		if err := ctx.Err(); err != nil {
			return res, &FactError{Fact: f.Name, Cause: err}
		}
		holds, err := f.Check(ctx)
		if err != nil {
			return res, &FactError{Fact: f.Name, Cause: fmt.Errorf("check: %w", err)}
		}
		if holds {
			res.Skipped++
			log.Debug("fact already holds", "fact", f.Name)
			continue
		}
		if err := f.Apply(ctx); err != nil {
			return res, &FactError{Fact: f.Name, Cause: err}
		}
		res.Applied++
		log.Info("fact applied", "fact", f.Name)
	}
	return res, nil
}
