package process

import (
	"context"
	"os/exec"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/errors"
	"github.com/core-tools/hsu-game-master/pkg/logging"
)

type execHandle struct {
	id          string
	cmd         *exec.Cmd
	done        chan struct{}
	exitErr     error
	gracePeriod time.Duration
	logger      logging.Logger
}

func (h *execHandle) wait() {
	h.exitErr = h.cmd.Wait()
	close(h.done)
	h.logger.Infof("Process exited, id: %s, PID: %d, result: %v", h.id, h.cmd.Process.Pid, h.exitErr)
}

func (h *execHandle) PID() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) IsAlive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *execHandle) Stop(ctx context.Context) error {
	if !h.IsAlive() {
		return nil
	}

	pid := h.PID()
	h.logger.Infof("Stopping process, id: %s, PID: %d, grace period: %v", h.id, pid, h.gracePeriod)

	if err := SendTerminationSignal(pid, time.Second); err != nil {
		h.logger.Warnf("Termination signal failed, id: %s, PID: %d, error: %v", h.id, pid, err)
	} else {
		timer := time.NewTimer(h.gracePeriod)
		defer timer.Stop()

		select {
		case <-h.done:
			h.logger.Infof("Process terminated gracefully, id: %s, PID: %d", h.id, pid)
			return nil
		case <-timer.C:
			h.logger.Warnf("Process did not exit within %v, killing, id: %s, PID: %d", h.gracePeriod, h.id, pid)
		case <-ctx.Done():
			h.logger.Warnf("Stop interrupted, killing, id: %s, PID: %d", h.id, pid)
		}
	}

	if err := forceKill(h.cmd.Process); err != nil && h.IsAlive() {
		h.logger.Errorf("Failed to kill process, id: %s, PID: %d, error: %v", h.id, pid, err)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(killWait):
		return errors.NewTimeoutError("process did not exit after kill", nil).WithContext("id", h.id).WithContext("pid", pid)
	}
}
