//go:build !windows

package bootstrap

import (
	"errors"
	"syscall"
)

// pidAlive reports whether a process with the given PID exists. Signal 0
// performs the existence check without delivering anything.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
