package process

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/loykin/bootstrapr/internal/logger"
)

// Spec describes one long-running service for the supervisor, or a
// dependency's bootstrap-mode child. It is produced from static
// configuration, handed to the supervisor at handoff, and never mutated
// afterward.
type Spec struct {
	Name            string        `json:"name" toml:"name" mapstructure:"name"`
	Command         string        `json:"command" toml:"command" mapstructure:"command"`
	WorkDir         string        `json:"workdir" toml:"workdir" mapstructure:"workdir"`
	Env             []string      `json:"env" toml:"env" mapstructure:"env"`
	AutoStart       bool          `json:"autostart" toml:"autostart" mapstructure:"autostart"`
	AutoRestart     bool          `json:"autorestart" toml:"autorestart" mapstructure:"autorestart"`
	RestartInterval time.Duration `json:"restart_interval" toml:"restart_interval" mapstructure:"restart_interval"`
	Log             logger.Config `json:"log" toml:"log" mapstructure:"log"`
}

// Validate checks the fields the supervisor relies on.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("process spec: name is required")
	}
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("process spec %s: command is required", s.Name)
	}
	return nil
}

// BuildCommand constructs an *exec.Cmd for spec.Command. A shell is only
// involved when the command string needs one: an explicit "sh -c ..." prefix
// is honored without double-wrapping, and shell metacharacters fall back to
// /bin/sh -c. Plain commands are exec'd directly.
func (s *Spec) BuildCommand() *exec.Cmd {
	return buildShellAware(s.Command)
}

func buildShellAware(cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if after, ok := explicitShellArg(cmdStr); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", after)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

// explicitShellArg detects a leading "sh -c <ARG>" (or absolute-path variant)
// and returns the script after "-c" verbatim, with one surrounding quote pair
// stripped so redirections inside the script still parse.
func explicitShellArg(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if !strings.HasPrefix(trim, p) {
			continue
		}
		after := trim[len(p):]
		if n := len(after); n >= 2 {
			if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
				after = after[1 : n-1]
			}
		}
		return after, true
	}
	return "", false
}
