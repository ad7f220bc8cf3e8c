//go:build !windows

package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartWaitCleanExit(t *testing.T) {
	p := New(Spec{Name: "ok", Command: "true"})
	require.NoError(t, p.Start(nil))
	require.NoError(t, p.Wait())
	st := p.Snapshot()
	assert.False(t, st.Running)
	assert.Empty(t, st.ExitError)
}

func TestWaitReportsExitError(t *testing.T) {
	p := New(Spec{Name: "fail", Command: "sh -c 'exit 3'"})
	require.NoError(t, p.Start(nil))
	err := p.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail")
}

func TestStopTerminatesLongRunner(t *testing.T) {
	p := New(Spec{Name: "sleeper", Command: "sleep 30"})
	require.NoError(t, p.Start(nil))
	require.True(t, p.Alive())
	require.NoError(t, p.Stop(2*time.Second))
	assert.False(t, p.Alive())
}

func TestStopOnNeverStartedIsNil(t *testing.T) {
	p := New(Spec{Name: "idle", Command: "true"})
	assert.NoError(t, p.Stop(time.Second))
	assert.NoError(t, p.Wait())
	assert.False(t, p.Alive())
}

func TestStartBadBinary(t *testing.T) {
	p := New(Spec{Name: "missing", Command: "/definitely/not/here"})
	assert.Error(t, p.Start(nil))
}

func TestEnvPropagates(t *testing.T) {
	p := New(Spec{Name: "env", Command: "sh -c 'test \"$BOOT_TOKEN\" = abc'"})
	require.NoError(t, p.Start([]string{"PATH=/usr/bin:/bin", "BOOT_TOKEN=abc"}))
	assert.NoError(t, p.Wait())
}

func TestSpecEnvReachesChild(t *testing.T) {
	p := New(Spec{
		Name:    "specenv",
		Command: "sh -c 'test \"$PGPORT\" = 5433'",
		Env:     []string{"PGPORT=5433"},
	})
	require.NoError(t, p.Start(nil))
	assert.NoError(t, p.Wait())
}

func TestSpecEnvOverridesGlobal(t *testing.T) {
	p := New(Spec{
		Name:    "override",
		Command: "sh -c 'test \"$PGPORT\" = 5433'",
		Env:     []string{"PGPORT=5433"},
	})
	require.NoError(t, p.Start([]string{"PATH=/usr/bin:/bin", "PGPORT=5432"}))
	assert.NoError(t, p.Wait())
}

func TestSpecEnvExpandsGlobalReferences(t *testing.T) {
	p := New(Spec{
		Name:    "expand",
		Command: "sh -c 'test \"$MARKER\" = /data/PG_VERSION'",
		Env:     []string{"MARKER=${PGDATA}/PG_VERSION"},
	})
	require.NoError(t, p.Start([]string{"PATH=/usr/bin:/bin", "PGDATA=/data"}))
	assert.NoError(t, p.Wait())
}
