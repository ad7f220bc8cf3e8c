package process

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/bootstrapr/internal/env"
)

// Status is a point-in-time snapshot of one run.
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	ExitError string    `json:"exit_error,omitempty"`
}

// Process is a single run of a Spec's command. The owner starts it once,
// then either Waits for it or Stops it; the supervisor creates a fresh
// Process per restart. All methods are safe for concurrent use.
type Process struct {
	spec Spec

	mu        sync.Mutex
	cmd       *exec.Cmd
	status    Status
	waitDone  chan struct{} // closed when the waiter goroutine reaps the child
	outCloser io.WriteCloser
	errCloser io.WriteCloser
}

func New(spec Spec) *Process {
	return &Process{spec: spec, status: Status{Name: spec.Name}}
}

func (p *Process) Spec() Spec { return p.spec }

// Start launches the command with the global environment layered under the
// spec's own env entries (spec wins on key collisions). The child is
// placed in its own process group so Stop can signal the whole tree. A
// waiter goroutine reaps the child as soon as it exits; Wait and Stop both
// observe that single reap.
func (p *Process) Start(globalEnv []string) error {
	cmd := p.spec.BuildCommand()
	if p.spec.WorkDir != "" {
		cmd.Dir = p.spec.WorkDir
	}
	if childEnv := p.childEnv(globalEnv); len(childEnv) > 0 {
		cmd.Env = childEnv
	}
	configureSysProcAttr(cmd)
	if err := p.routeOutput(cmd); err != nil {
		return fmt.Errorf("start %s: %w", p.spec.Name, err)
	}

	if err := cmd.Start(); err != nil {
		p.closeWriters()
		return fmt.Errorf("start %s: %w", p.spec.Name, err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.waitDone = make(chan struct{})
	p.status = Status{
		Name:      p.spec.Name,
		Running:   true,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
	}
	done := p.waitDone
	p.mu.Unlock()

	go func() {
		err := cmd.Wait()
		p.markExited(err)
		p.closeWriters()
		close(done)
	}()
	return nil
}

// childEnv composes the environment for this run: the caller's global
// slice (the OS environment when none is given) with the spec's env on
// top, ${VAR} references expanded against the composed set.
func (p *Process) childEnv(globalEnv []string) []string {
	if len(p.spec.Env) == 0 {
		return globalEnv
	}
	base := globalEnv
	if base == nil {
		base = os.Environ()
	}
	t := env.New(false)
	t.SetAll(base)
	return t.Merge(p.spec.Env)
}

// routeOutput connects the child's stdout/stderr. Default is the host's own
// streams (the supervisor's contract: no private log files unless asked).
func (p *Process) routeOutput(cmd *exec.Cmd) error {
	if p.spec.Log.Inherit() {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return nil
	}
	outW, errW, err := p.spec.Log.Writers(p.spec.Name)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.outCloser, p.errCloser = outW, errW
	p.mu.Unlock()
	if outW != nil {
		cmd.Stdout = outW
	}
	if errW != nil {
		cmd.Stderr = errW
	}
	return nil
}

// Wait blocks until the run exits and returns its exit error, nil for a
// clean exit. Calling Wait on a never-started process returns nil.
func (p *Process) Wait() error {
	p.mu.Lock()
	done := p.waitDone
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.ExitError != "" {
		return fmt.Errorf("%s: %s", p.spec.Name, p.status.ExitError)
	}
	return nil
}

// WaitDone returns a channel closed when the run has been reaped, or nil if
// the run never started.
func (p *Process) WaitDone() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitDone
}

// Alive reports whether the child is running (started and not yet reaped).
func (p *Process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.waitDone == nil {
		return false
	}
	select {
	case <-p.waitDone:
		return false
	default:
		return true
	}
}

// Stop terminates the run: SIGTERM to the process group, a bounded wait,
// then SIGKILL. It returns an error only when the child could not be
// brought down within the escalation window; the caller decides severity.
func (p *Process) Stop(wait time.Duration) error {
	p.mu.Lock()
	cmd := p.cmd
	done := p.waitDone
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil // already exited
	default:
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	pid := cmd.Process.Pid
	terminateGroup(pid)
	select {
	case <-done:
		return nil
	case <-time.After(wait):
	}
	killGroup(pid)
	select {
	case <-done:
		return nil
	case <-time.After(2 * time.Second):
		return fmt.Errorf("stop %s: pid %d did not exit after SIGKILL", p.spec.Name, pid)
	}
}

func (p *Process) markExited(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Running = false
	p.status.StoppedAt = time.Now()
	if err != nil {
		p.status.ExitError = err.Error()
	}
}

func (p *Process) closeWriters() {
	p.mu.Lock()
	out, errW := p.outCloser, p.errCloser
	p.outCloser, p.errCloser = nil, nil
	p.mu.Unlock()
	if out != nil {
		_ = out.Close()
	}
	if errW != nil && errW != out {
		_ = errW.Close()
	}
}

// Snapshot returns a copy of the current status.
func (p *Process) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
