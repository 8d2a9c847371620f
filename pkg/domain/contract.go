package domain

import (
	"context"

	"github.com/core-tools/hsu-game-master/pkg/supervisor"
)

// Contract is what the control API offers a second local operator tool
type Contract interface {
	Status(ctx context.Context) (*supervisor.StatusReport, error)
	// RestartServer stops the named server and starts it again when the backoff window allows
	RestartServer(ctx context.Context, name string) error
}
