package master

import (
	"context"
	"time"

	corecontrol "github.com/core-tools/hsu-core/pkg/control"
	coredomain "github.com/core-tools/hsu-core/pkg/domain"
	corelogging "github.com/core-tools/hsu-core/pkg/logging"
	mastercontrol "github.com/core-tools/hsu-game-master/pkg/control"
	"github.com/core-tools/hsu-game-master/pkg/errors"
	masterlogging "github.com/core-tools/hsu-game-master/pkg/logging"
	"github.com/core-tools/hsu-game-master/pkg/supervisor"
)

type MasterOptions struct {
	// Port of the local control API, 0 disables it
	Port                 int
	ForceShutdownTimeout time.Duration
}

// Master exposes the supervisor to the control API. Every request is executed
// on the scheduler task, so it never races a check-in or a console session.
type Master struct {
	options   MasterOptions
	server    corecontrol.Server
	scheduler *supervisor.Scheduler
	logger    masterlogging.Logger
}

func NewMaster(options MasterOptions, scheduler *supervisor.Scheduler, coreLogger corelogging.Logger, masterLogger masterlogging.Logger) (*Master, error) {
	if scheduler == nil {
		return nil, errors.NewValidationError("scheduler cannot be nil", nil)
	}

	master := &Master{
		options:   options,
		scheduler: scheduler,
		logger:    masterLogger,
	}

	if options.Port == 0 {
		masterLogger.Infof("Control API disabled")
		return master, nil
	}

	serverOptions := corecontrol.ServerOptions{
		Port: options.Port,
	}
	server, err := corecontrol.NewServer(serverOptions, coreLogger)
	if err != nil {
		return nil, errors.NewInternalError("failed to create server", err).WithContext("port", options.Port)
	}

	// Core ping service, used by clients to wait for the server
	coreHandler := coredomain.NewDefaultHandler(coreLogger)
	corecontrol.RegisterGRPCServerHandler(server.GRPC(), coreHandler, coreLogger)

	mastercontrol.RegisterGRPCServerHandler(server.GRPC(), master, masterLogger)

	master.server = server
	return master, nil
}

func (m *Master) Status(ctx context.Context) (*supervisor.StatusReport, error) {
	var report *supervisor.StatusReport
	err := m.scheduler.Do(ctx, func(ctx context.Context, sup *supervisor.Supervisor) {
		report = sup.Snapshot()
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (m *Master) RestartServer(ctx context.Context, name string) error {
	if name == "" {
		return errors.NewValidationError("server name cannot be empty", nil)
	}

	m.logger.Infof("Restart requested through the control API, server: %s", name)

	var restartErr error
	err := m.scheduler.Do(ctx, func(ctx context.Context, sup *supervisor.Supervisor) {
		restartErr = sup.RestartServer(ctx, name)
	})
	if err != nil {
		return err
	}
	return restartErr
}

// Start begins serving the control API, when enabled
func (m *Master) Start(ctx context.Context) {
	if m.server == nil {
		return
	}
	m.logger.Infof("Starting control API, port: %d", m.options.Port)
	m.server.Start(ctx)
}

func (m *Master) Stop(ctx context.Context) {
	if m.server == nil {
		return
	}
	m.logger.Infof("Stopping control API...")

	if ctx == nil {
		ctx = context.Background()
	}

	timeout := m.options.ForceShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m.server.Shutdown(ctx)
	m.logger.Infof("Control API stopped")
}
