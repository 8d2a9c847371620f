package supervisor

import (
	"time"

	"github.com/core-tools/hsu-game-master/pkg/config"
	"github.com/core-tools/hsu-game-master/pkg/logging"
	"github.com/core-tools/hsu-game-master/pkg/process"
)

// ServerUnit binds one configured server to its current process.
// Units live as long as the supervisor; only handle and startedAt change.
type ServerUnit struct {
	Config config.ServerConfig

	handle    process.Handle
	startedAt time.Time
	logger    logging.Logger
}

func newServerUnit(cfg config.ServerConfig, logger logging.Logger) *ServerUnit {
	return &ServerUnit{
		Config: cfg,
		logger: logging.NewServerLogger(logger, cfg.ID()),
	}
}

func (u *ServerUnit) Name() string {
	return u.Config.ID()
}

// IsAlive is false when the unit was never started or its process exited
func (u *ServerUnit) IsAlive() bool {
	return u.handle != nil && u.handle.IsAlive()
}

// Age reports the time since the last start. ok is false if the unit was never started.
func (u *ServerUnit) Age(now time.Time) (age time.Duration, ok bool) {
	if u.startedAt.IsZero() {
		return 0, false
	}
	return now.Sub(u.startedAt), true
}

func (u *ServerUnit) StartedAt() (time.Time, bool) {
	return u.startedAt, !u.startedAt.IsZero()
}

// PID of the last started process, 0 if none
func (u *ServerUnit) PID() int {
	if u.handle == nil {
		return 0
	}
	return u.handle.PID()
}
