package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type memSink struct {
	events []Event
	fail   bool
	closed bool
}

func (m *memSink) Send(_ context.Context, e Event) error {
	if m.fail {
		return errors.New("sink down")
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memSink) Close() error {
	m.closed = true
	return nil
}

func TestRecorderFansOut(t *testing.T) {
	a, b := &memSink{}, &memSink{}
	r := NewRecorder(nil, a, b)
	r.Transition(context.Background(), "postgres", "not-started", "starting-bootstrap")
	r.Outcome(context.Background(), "success")

	assert.Len(t, a.events, 2)
	assert.Len(t, b.events, 2)
	assert.Equal(t, EventTransition, a.events[0].Type)
	assert.Equal(t, "postgres", a.events[0].Dependency)
	assert.Equal(t, "not-started -> starting-bootstrap", a.events[0].Detail)
	assert.False(t, a.events[0].OccurredAt.IsZero())
}

func TestRecorderSwallowsSinkErrors(t *testing.T) {
	bad, good := &memSink{fail: true}, &memSink{}
	r := NewRecorder(nil, bad, good)
	r.Record(context.Background(), Event{Type: EventOutcome, Detail: "success"})
	assert.Len(t, good.events, 1, "healthy sink still receives the event")
}

func TestRecorderKeepsProvidedTimestamp(t *testing.T) {
	s := &memSink{}
	r := NewRecorder(nil, s)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.Record(context.Background(), Event{Type: EventReadiness, OccurredAt: at, Detail: "3 attempts"})
	assert.Equal(t, at, s.events[0].OccurredAt)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.Record(context.Background(), Event{Type: EventOutcome})
	r.Close()
}

func TestRecorderClose(t *testing.T) {
	s := &memSink{}
	r := NewRecorder(nil, s)
	r.Close()
	assert.True(t, s.closed)
}
