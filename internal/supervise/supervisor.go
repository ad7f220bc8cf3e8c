package supervise

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/bootstrapr/internal/metrics"
	"github.com/loykin/bootstrapr/internal/process"
)

// Supervisor runs a fixed process table. Each entry gets its own monitor
// goroutine that reaps exits and restarts with the entry's restart
// interval. The table is owned exclusively by the supervisor after
// construction; there is no mutation API.
type Supervisor struct {
	log   *slog.Logger
	env   []string
	table []process.Spec

	mu       sync.Mutex
	children map[string]*child
	order    []string
}

type child struct {
	spec process.Spec

	mu       sync.Mutex
	proc     *process.Process
	restarts int
	stopping bool
}

func New(table []process.Spec, env []string, log *slog.Logger) (*Supervisor, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("supervisor: empty process table")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Supervisor{
		log:      log,
		env:      env,
		table:    table,
		children: make(map[string]*child, len(table)),
	}
	for _, spec := range table {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.children[spec.Name]; dup {
			return nil, fmt.Errorf("supervisor: duplicate process %q", spec.Name)
		}
		s.children[spec.Name] = &child{spec: spec}
		s.order = append(s.order, spec.Name)
	}
	return s, nil
}

// Run is the supervisor's entry point and the handoff target: it starts
// every auto-start entry, supervises until ctx is cancelled (container
// shutdown), stops everything, and only then returns. The caller is
// expected to exit immediately afterward; bootstrap logic must not resume.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, name := range s.order {
		c := s.children[name]
		if !c.spec.AutoStart {
			continue
		}
		if err := s.startChild(c); err != nil {
			// The monitor loop owns retries from here; a failed first start
			// is retried like a crash.
			s.log.Error("initial start failed", "process", c.spec.Name, "error", err)
		}
		wg.Add(1)
		go func(c *child) {
			defer wg.Done()
			s.monitor(ctx, c)
		}(c)
	}
	s.log.Info("supervision active", "processes", len(s.order))
	<-ctx.Done()
	s.log.Info("shutting down supervised processes")
	s.stopAll()
	wg.Wait()
	return nil
}

func (s *Supervisor) startChild(c *child) error {
	p := process.New(c.spec)
	if err := p.Start(s.env); err != nil {
		return err
	}
	c.mu.Lock()
	c.proc = p
	c.mu.Unlock()
	metrics.IncProcessStart(c.spec.Name)
	s.log.Info("process started", "process", c.spec.Name, "pid", p.Snapshot().PID)
	return nil
}

// monitor reaps one child's exits and applies the restart policy until ctx
// is cancelled.
func (s *Supervisor) monitor(ctx context.Context, c *child) {
	interval := c.spec.RestartInterval
	if interval <= 0 {
		interval = DefaultRestartInterval
	}
	for {
		c.mu.Lock()
		p := c.proc
		c.mu.Unlock()

		if p != nil {
			err := p.Wait()
			metrics.IncProcessStop(c.spec.Name)
			if err != nil {
				s.log.Warn("process exited", "process", c.spec.Name, "error", err)
			} else {
				s.log.Info("process exited cleanly", "process", c.spec.Name)
			}
		}

		c.mu.Lock()
		stopping := c.stopping
		c.mu.Unlock()
		if stopping || !c.spec.AutoRestart {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		if err := s.startChild(c); err != nil {
			s.log.Error("restart failed", "process", c.spec.Name, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
			continue
		}
		c.mu.Lock()
		c.restarts++
		c.mu.Unlock()
		metrics.IncProcessRestart(c.spec.Name)
	}
}

func (s *Supervisor) stopAll() {
	var wg sync.WaitGroup
	for _, name := range s.order {
		c := s.children[name]
		c.mu.Lock()
		c.stopping = true
		p := c.proc
		c.mu.Unlock()
		if p == nil {
			continue
		}
		wg.Add(1)
		go func(name string, p *process.Process) {
			defer wg.Done()
			if err := p.Stop(5 * time.Second); err != nil {
				s.log.Warn("stop failed", "process", name, "error", err)
			}
		}(name, p)
	}
	wg.Wait()
}

// ChildStatus is one table entry's snapshot plus its restart count.
type ChildStatus struct {
	process.Status
	Restarts int `json:"restarts"`
}

// Statuses reports a snapshot per table entry, in table order.
func (s *Supervisor) Statuses() []ChildStatus {
	out := make([]ChildStatus, 0, len(s.order))
	for _, name := range s.order {
		c := s.children[name]
		c.mu.Lock()
		p := c.proc
		restarts := c.restarts
		c.mu.Unlock()
		st := ChildStatus{Status: process.Status{Name: name}, Restarts: restarts}
		if p != nil {
			st.Status = p.Snapshot()
		}
		out = append(out, st)
	}
	return out
}

// Table returns a copy of the immutable process table.
func (s *Supervisor) Table() []process.Spec {
	out := make([]process.Spec, len(s.table))
	copy(out, s.table)
	return out
}
