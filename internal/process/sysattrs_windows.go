//go:build windows

package process

import (
	"os"
	"os/exec"
)

func configureSysProcAttr(_ *exec.Cmd) {}

// Windows has no process groups in the POSIX sense; both paths degrade to
// killing the direct child.
func terminateGroup(pid int) { signalPid(pid) }

func killGroup(pid int) { signalPid(pid) }

func signalPid(pid int) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	_ = proc.Kill()
}
