package provision

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// CommandFact builds a fact from a pair of external commands: the check
// command's exit status decides whether the fact holds (0 = holds), the
// apply command establishes it. This covers dependencies without a SQL
// admin surface (e.g. seeding a cache namespace via redis-cli).
func CommandFact(name, checkCmd, applyCmd string, env []string) Fact {
	return Fact{
		Name: name,
		Check: func(ctx context.Context) (bool, error) {
			if strings.TrimSpace(checkCmd) == "" {
				return false, nil // no check: always apply, apply must be idempotent itself
			}
			err := runShell(ctx, checkCmd, env)
			if err == nil {
				return true, nil
			}
			var ee *exec.ExitError
			if errors.As(err, &ee) {
				return false, nil
			}
			return false, err
		},
		Apply: func(ctx context.Context) error {
			return runShell(ctx, applyCmd, env)
		},
	}
}

func runShell(ctx context.Context, cmdStr string, env []string) error {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return errors.New("empty command")
	}
	var cmd *exec.Cmd
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", cmdStr)
	} else {
		parts := strings.Fields(cmdStr)
		// #nosec G204
		cmd = exec.CommandContext(ctx, parts[0], parts[1:]...)
	}
	if len(env) > 0 {
		cmd.Env = env
	}
	return cmd.Run()
}
