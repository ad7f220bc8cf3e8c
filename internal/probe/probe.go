// Package probe implements bounded readiness polling for bootstrap-mode
// dependencies. A prober answers "can this dependency accept requests right
// now"; the poller retries it with a fixed interval until it succeeds or the
// attempt budget runs out. Exhaustion is returned as a value, never raised;
// the lifecycle decides how fatal it is.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result of one polling session.
type Result int

const (
	Ready Result = iota
	Exhausted
)

func (r Result) String() string {
	if r == Ready {
		return "ready"
	}
	return "exhausted"
}

// Prober answers a single readiness question. A nil error means ready.
type Prober interface {
	Probe(ctx context.Context) error
	Describe() string
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }
func (f ProberFunc) Describe() string                { return "func" }

// Attempt records one probe invocation. Attempts are observed, not persisted.
type Attempt struct {
	Number int
	Err    error
	At     time.Time
}

// Poller runs a prober up to MaxAttempts times, sleeping Interval between
// failures. Sleep is injectable for tests; nil uses a timer honoring ctx.
type Poller struct {
	MaxAttempts int
	Interval    time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
	Observe     func(Attempt) // optional per-attempt hook (metrics/journal)
}

// Poll invokes the prober until it succeeds or attempts run out. It returns
// Ready with a nil error, or Exhausted with the last probe error. Context
// cancellation aborts between attempts and is reported as an error.
func (p Poller) Poll(ctx context.Context, prober Prober) (Result, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var last error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return Exhausted, err
		}
		last = prober.Probe(ctx)
		if p.Observe != nil {
			p.Observe(Attempt{Number: i, Err: last, At: time.Now()})
		}
		if last == nil {
			return Ready, nil
		}
		if i < attempts && p.Interval > 0 {
			if err := sleep(ctx, p.Interval); err != nil {
				return Exhausted, err
			}
		}
	}
	return Exhausted, fmt.Errorf("probe %s: %d attempts exhausted: %w", prober.Describe(), attempts, last)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CommandProber runs an external readiness command (pg_isready, redis-cli
// ping). The exit status is the sole signal; output is discarded.
type CommandProber struct {
	Command string
	Env     []string
}

func (c CommandProber) Probe(ctx context.Context) error {
	cmdStr := strings.TrimSpace(c.Command)
	if cmdStr == "" {
		return errors.New("empty probe command")
	}
	var cmd *exec.Cmd
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", cmdStr)
	} else {
		parts := strings.Fields(cmdStr)
		// #nosec G204
		cmd = exec.CommandContext(ctx, parts[0], parts[1:]...)
	}
	if len(c.Env) > 0 {
		cmd.Env = c.Env
	}
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

func (c CommandProber) Describe() string { return "cmd:" + c.Command }
