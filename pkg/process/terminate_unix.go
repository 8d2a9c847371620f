//go:build !windows

package process

import (
	"os"
	"syscall"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/errors"
)

// SendTerminationSignal sends SIGTERM to the process group of pid
func SendTerminationSignal(pid int, timeout time.Duration) error {
	if pid <= 0 {
		return errors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		return errors.NewProcessError("failed to send SIGTERM", err).WithContext("pid", pid)
	}
	return nil
}

// forceKill sends SIGKILL to the process group, falling back to the single process
func forceKill(process *os.Process) error {
	if err := syscall.Kill(-process.Pid, syscall.SIGKILL); err != nil {
		return process.Kill()
	}
	return nil
}
