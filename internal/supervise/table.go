// Package supervise owns everything after the handoff: the final process
// table and the restart loop that keeps its entries alive. Once control is
// transferred the bootstrap never runs again; restart decisions belong
// here alone.
package supervise

import (
	"fmt"
	"time"

	"github.com/loykin/bootstrapr/internal/process"
)

// DefaultRestartInterval is applied when a spec does not set one.
const DefaultRestartInterval = time.Second

// BuildTable assembles the final process table: one entry per dependency in
// long-running mode followed by one per application process. Every entry is
// forced to autostart + autorestart: the supervisor's contract is "exit
// means restart" for each long-running service. Names must be unique.
func BuildTable(deps []process.Spec, apps []process.Spec) ([]process.Spec, error) {
	table := make([]process.Spec, 0, len(deps)+len(apps))
	seen := make(map[string]struct{}, len(deps)+len(apps))
	for _, s := range append(append([]process.Spec{}, deps...), apps...) {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("process table: duplicate name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		s.AutoStart = true
		s.AutoRestart = true
		if s.RestartInterval <= 0 {
			s.RestartInterval = DefaultRestartInterval
		}
		table = append(table, s)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("process table: empty")
	}
	return table, nil
}
