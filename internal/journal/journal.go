// Package journal records bootstrap lifecycle events to pluggable sinks
// (sqlite locally, postgres or clickhouse for fleet-level audit). Recording
// is best-effort by design: an audit trail must never abort a bootstrap.
package journal

import (
	"context"
	"log/slog"
	"time"
)

// EventType classifies journal entries.
type EventType string

const (
	EventTransition EventType = "transition" // dependency state change
	EventReadiness  EventType = "readiness"  // polling session summary
	EventProvision  EventType = "provision"  // facts applied/skipped summary
	EventOutcome    EventType = "outcome"    // terminal bootstrap outcome
)

// Event is one journal entry. Dependency is empty for whole-bootstrap
// events (outcome).
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Dependency string    `json:"dependency,omitempty"`
	Detail     string    `json:"detail"`
}

// Sink is a destination for events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Recorder fans events out to zero or more sinks, logging failures instead
// of propagating them.
type Recorder struct {
	log   *slog.Logger
	sinks []Sink
}

func NewRecorder(log *slog.Logger, sinks ...Sink) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{log: log, sinks: sinks}
}

func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	for _, s := range r.sinks {
		if err := s.Send(ctx, e); err != nil {
			r.log.Warn("journal sink failed", "type", string(e.Type), "error", err)
		}
	}
}

// Transition records a dependency state change.
func (r *Recorder) Transition(ctx context.Context, dep, from, to string) {
	r.Record(ctx, Event{Type: EventTransition, Dependency: dep, Detail: from + " -> " + to})
}

// Outcome records the terminal state of the whole bootstrap.
func (r *Recorder) Outcome(ctx context.Context, detail string) {
	r.Record(ctx, Event{Type: EventOutcome, Detail: detail})
}

// Close closes all sinks.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			r.log.Warn("journal sink close failed", "error", err)
		}
	}
}
