package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollBoundedAttempts(t *testing.T) {
	calls := 0
	p := ProberFunc(func(context.Context) error {
		calls++
		return errors.New("not yet")
	})
	res, err := Poller{MaxAttempts: 3, Interval: 0}.Poll(context.Background(), p)
	assert.Equal(t, Exhausted, res)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestPollReadyStopsEarly(t *testing.T) {
	calls := 0
	p := ProberFunc(func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("warming up")
		}
		return nil
	})
	res, err := Poller{MaxAttempts: 5, Interval: 0}.Poll(context.Background(), p)
	assert.Equal(t, Ready, res)
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestPollSleepsBetweenFailuresOnly(t *testing.T) {
	sleeps := 0
	p := ProberFunc(func(context.Context) error { return errors.New("no") })
	pl := Poller{
		MaxAttempts: 4,
		Interval:    time.Second,
		Sleep: func(context.Context, time.Duration) error {
			sleeps++
			return nil
		},
	}
	res, _ := pl.Poll(context.Background(), p)
	assert.Equal(t, Exhausted, res)
	// no sleep after the final attempt
	assert.Equal(t, 3, sleeps)
}

func TestPollContextCancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := ProberFunc(func(context.Context) error { return errors.New("no") })
	res, err := Poller{MaxAttempts: 3}.Poll(ctx, p)
	assert.Equal(t, Exhausted, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollObserveSeesEveryAttempt(t *testing.T) {
	var seen []Attempt
	p := ProberFunc(func(context.Context) error { return errors.New("no") })
	pl := Poller{MaxAttempts: 2, Observe: func(a Attempt) { seen = append(seen, a) }}
	_, _ = pl.Poll(context.Background(), p)
	require.Len(t, seen, 2)
	assert.Equal(t, 1, seen[0].Number)
	assert.Equal(t, 2, seen[1].Number)
}

func TestCommandProberExitStatus(t *testing.T) {
	assert.NoError(t, CommandProber{Command: "true"}.Probe(context.Background()))
	assert.Error(t, CommandProber{Command: "false"}.Probe(context.Background()))
	assert.Error(t, CommandProber{Command: ""}.Probe(context.Background()))
}
