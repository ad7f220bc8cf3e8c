package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTOML = `
[[dependencies]]
name = "redis"
bootstrap_command = "redis-server"
serve_command = "redis-server"

[dependencies.probe]
type = "command"
command = "redis-cli ping"

[[processes]]
name = "web"
command = "gunicorn app:app"
`

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "bootstrapr.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestVersionCommand(t *testing.T) {
	root := buildRoot()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "bootstrapr")
}

func TestValidateCommand(t *testing.T) {
	root := buildRoot()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"validate", "--config", writeTOML(t, validTOML)})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "configuration valid")
}

func TestValidateRejectsBrokenConfig(t *testing.T) {
	root := buildRoot()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"validate", "--config", writeTOML(t, "[[dependencies]]\nname = \"x\"\n")})
	assert.Error(t, root.Execute())
}

func TestUpRequiresConfigFlag(t *testing.T) {
	root := buildRoot()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"up"})
	assert.Error(t, root.Execute())
}

func TestRootListsSubcommands(t *testing.T) {
	root := buildRoot()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"up", "validate", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
