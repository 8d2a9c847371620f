//go:build windows

package process

import (
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/errors"
)

// Serializes console control events across concurrent stops
var consoleOperationLock sync.Mutex

// SendTerminationSignal delivers Ctrl+Break to the process group of pid
func SendTerminationSignal(pid int, timeout time.Duration) error {
	if pid <= 0 {
		return errors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}

	consoleOperationLock.Lock()
	defer consoleOperationLock.Unlock()

	dll, err := syscall.LoadDLL("kernel32.dll")
	if err != nil {
		return errors.NewInternalError("failed to load kernel32.dll", err)
	}
	defer dll.Release()

	done := make(chan error, 1)
	go func() {
		done <- generateConsoleCtrlEvent(dll, pid)
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.NewProcessError("failed to send Ctrl+Break", err).WithContext("pid", pid)
		}
		return nil
	case <-time.After(timeout):
		return errors.NewTimeoutError("timeout sending Ctrl+Break", nil).WithContext("pid", pid).WithContext("timeout", timeout)
	}
}

func forceKill(process *os.Process) error {
	return process.Kill()
}

func generateConsoleCtrlEvent(dll *syscall.DLL, pid int) error {
	proc, err := dll.FindProc("GenerateConsoleCtrlEvent")
	if err != nil {
		return err
	}

	result, _, err := proc.Call(
		uintptr(syscall.CTRL_BREAK_EVENT),
		uintptr(pid),
	)
	if result == 0 {
		return err
	}
	return nil
}
