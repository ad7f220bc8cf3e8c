package supervise

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/bootstrapr/internal/process"
)

func TestBuildTableCompleteness(t *testing.T) {
	deps := []process.Spec{
		{Name: "postgres", Command: "postgres -D /data"},
		{Name: "redis", Command: "redis-server"},
	}
	apps := []process.Spec{
		{Name: "web", Command: "gunicorn app:app"},
		{Name: "worker", Command: "celery worker"},
		{Name: "scheduler", Command: "celery beat"},
	}
	table, err := BuildTable(deps, apps)
	require.NoError(t, err)
	require.Len(t, table, 5)
	for _, s := range table {
		assert.True(t, s.AutoStart, "%s must autostart", s.Name)
		assert.True(t, s.AutoRestart, "%s must autorestart", s.Name)
		assert.Greater(t, s.RestartInterval, time.Duration(0), "%s needs a restart interval", s.Name)
	}
	// dependencies first, table order preserved
	assert.Equal(t, "postgres", table[0].Name)
	assert.Equal(t, "scheduler", table[4].Name)
}

func TestBuildTableRejectsDuplicates(t *testing.T) {
	_, err := BuildTable(
		[]process.Spec{{Name: "db", Command: "x"}},
		[]process.Spec{{Name: "db", Command: "y"}},
	)
	assert.Error(t, err)
}

func TestBuildTableRejectsInvalidSpec(t *testing.T) {
	_, err := BuildTable([]process.Spec{{Name: "", Command: "x"}}, nil)
	assert.Error(t, err)
}

func TestBuildTableRejectsEmpty(t *testing.T) {
	_, err := BuildTable(nil, nil)
	assert.Error(t, err)
}
