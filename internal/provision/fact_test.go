package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWorld simulates a dependency's provisioned state the way the real
// facts do: role before database, database creation failing when the owner
// is missing.
type fakeWorld struct {
	roles map[string]bool
	dbs   map[string]bool
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{roles: map[string]bool{}, dbs: map[string]bool{}}
}

func (w *fakeWorld) roleFact(name string) Fact {
	return Fact{
		Name:  "role " + name + " exists",
		Check: func(context.Context) (bool, error) { return w.roles[name], nil },
		Apply: func(context.Context) error { w.roles[name] = true; return nil },
	}
}

func (w *fakeWorld) dbFact(name, owner string) Fact {
	return Fact{
		Name:  "database " + name + " exists",
		Check: func(context.Context) (bool, error) { return w.dbs[name], nil },
		Apply: func(context.Context) error {
			if !w.roles[owner] {
				return errors.New("owner role does not exist")
			}
			w.dbs[name] = true
			return nil
		},
	}
}

func TestApplyTwiceIsIdempotent(t *testing.T) {
	w := newFakeWorld()
	facts := []Fact{w.roleFact("gavel"), w.dbFact("gavel", "gavel")}

	first, err := Apply(context.Background(), nil, facts)
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 2, Skipped: 0}, first)

	second, err := Apply(context.Background(), nil, facts)
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 0, Skipped: 2}, second)
}

func TestApplyPreservesOrder(t *testing.T) {
	w := newFakeWorld()
	reversed := []Fact{w.dbFact("gavel", "gavel"), w.roleFact("gavel")}

	_, err := Apply(context.Background(), nil, reversed)
	var fe *FactError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "database gavel exists", fe.Fact)
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	applied := 0
	boom := errors.New("boom")
	facts := []Fact{
		{Name: "a", Check: func(context.Context) (bool, error) { return false, nil },
			Apply: func(context.Context) error { applied++; return nil }},
		{Name: "b", Check: func(context.Context) (bool, error) { return false, nil },
			Apply: func(context.Context) error { return boom }},
		{Name: "c", Check: func(context.Context) (bool, error) { return false, nil },
			Apply: func(context.Context) error { applied++; return nil }},
	}
	res, err := Apply(context.Background(), nil, facts)
	var fe *FactError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "b", fe.Fact)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, applied) // "c" never ran
	assert.Equal(t, 1, res.Applied)
}

func TestApplyCheckErrorStops(t *testing.T) {
	facts := []Fact{{
		Name:  "broken-check",
		Check: func(context.Context) (bool, error) { return false, errors.New("no admin conn") },
		Apply: func(context.Context) error { t.Fatal("apply must not run"); return nil },
	}}
	_, err := Apply(context.Background(), nil, facts)
	var fe *FactError
	require.ErrorAs(t, err, &fe)
}

func TestCommandFactExitStatus(t *testing.T) {
	holds := CommandFact("held", "true", "false", nil)
	ok, err := holds.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	missing := CommandFact("missing", "false", "true", nil)
	ok, err = missing.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, missing.Apply(context.Background()))
}
