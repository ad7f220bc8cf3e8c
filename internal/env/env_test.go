package env

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergePrecedence(t *testing.T) {
	tbl := New(false)
	tbl.SetAll([]string{"A=global", "B=global"})
	got := tbl.Merge([]string{"B=proc", "C=proc"})
	assert.Contains(t, got, "A=global")
	assert.Contains(t, got, "B=proc")
	assert.Contains(t, got, "C=proc")
}

func TestMergeExpansion(t *testing.T) {
	tbl := New(false)
	tbl.Set("PGDATA", "/var/lib/postgresql/data")
	got := tbl.Merge([]string{"MARKER=${PGDATA}/PG_VERSION"})
	assert.Contains(t, got, "MARKER=/var/lib/postgresql/data/PG_VERSION")
}

func TestMergeSkipsMalformed(t *testing.T) {
	tbl := New(false)
	tbl.SetAll([]string{"=oops", "novalue"})
	got := tbl.Merge(nil)
	for _, kv := range got {
		if strings.HasPrefix(kv, "=") {
			t.Fatalf("malformed entry survived merge: %q", kv)
		}
	}
}

func TestMergeUnknownReferenceKept(t *testing.T) {
	tbl := New(false)
	got := tbl.Merge([]string{"X=${NOT_SET}/x"})
	assert.Contains(t, got, "X=${NOT_SET}/x")
}
