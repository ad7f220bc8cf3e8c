package env

import (
	"os"
	"sort"
	"strings"
)

// Table holds environment variables assembled for child processes.
// The bootstrap reads configuration-derived variables once at startup and
// layers per-process overrides on top; nothing reads ambient environment
// after construction.
type Table struct {
	base   map[string]string // OS environment snapshot (optional)
	global map[string]string // configuration-level variables
}

// New returns an empty table. When useOS is true the current process
// environment is captured once as the base layer.
func New(useOS bool) *Table {
	t := &Table{global: make(map[string]string)}
	if useOS {
		t.base = make(map[string]string)
		for _, kv := range os.Environ() {
			if k, v, ok := splitKV(kv); ok {
				t.base[k] = v
			}
		}
	}
	return t
}

// Set records a configuration-level variable.
func (t *Table) Set(k, v string) {
	if k == "" {
		return
	}
	t.global[k] = v
}

// SetAll records a slice of "K=V" entries. Malformed entries are skipped.
func (t *Table) SetAll(kvs []string) {
	for _, kv := range kvs {
		if k, v, ok := splitKV(kv); ok {
			t.Set(k, v)
		}
	}
}

// Merge composes the environment for one child process: OS base (if
// captured), then configuration variables, then per-process overrides.
// ${VAR} references are expanded against the composed map, one pass.
func (t *Table) Merge(perProc []string) []string {
	m := make(map[string]string, len(t.base)+len(t.global)+len(perProc))
	for k, v := range t.base {
		m[k] = v
	}
	for k, v := range t.global {
		m[k] = v
	}
	for _, kv := range perProc {
		if k, v, ok := splitKV(kv); ok {
			m[k] = v
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	sort.Strings(out)
	return out
}

func splitKV(kv string) (string, string, bool) {
	i := strings.IndexByte(kv, '=')
	if i <= 0 {
		return "", "", false
	}
	return kv[:i], kv[i+1:], true
}

// expand substitutes ${VAR} occurrences from m. Unknown references are left
// untouched so a child can still expand them itself.
func expand(s string, m map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, func(k string) string {
		if v, ok := m[k]; ok {
			return v
		}
		return "${" + k + "}"
	})
}
