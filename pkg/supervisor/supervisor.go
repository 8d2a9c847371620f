package supervisor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/config"
	"github.com/core-tools/hsu-game-master/pkg/errors"
	"github.com/core-tools/hsu-game-master/pkg/logging"
	"github.com/core-tools/hsu-game-master/pkg/metrics"
	"github.com/core-tools/hsu-game-master/pkg/probe"
	"github.com/core-tools/hsu-game-master/pkg/process"
)

// DefaultProbeTimeout bounds each health probe in a status report
const DefaultProbeTimeout = 5 * time.Second

type Options struct {
	StartupDelay           time.Duration
	ContinueOnHealthyProbe bool
	ProbeTimeout           time.Duration

	Launcher process.Launcher
	// Prober may be nil, every report line then reads "no data"
	Prober  probe.Prober
	Metrics *metrics.Metrics
	// Out receives the per-cycle status lines
	Out io.Writer
	// Now is the clock, time.Now when nil
	Now func() time.Time
	// OnCheckIn observes the report of every completed check-in
	OnCheckIn func(*StatusReport)
}

// Supervisor owns every ServerUnit and the backoff gate. It is not safe for concurrent
// use: the Scheduler is its only caller.
type Supervisor struct {
	options Options
	units   []*ServerUnit
	byName  map[string]*ServerUnit
	gate    *BackoffGate
	pending string
	running bool
	probed  []ServerStatus
	logger  logging.Logger
}

func NewSupervisor(servers []config.ServerConfig, options Options, logger logging.Logger) (*Supervisor, error) {
	if options.Launcher == nil {
		return nil, errors.NewValidationError("launcher cannot be nil", nil)
	}
	if len(servers) == 0 {
		return nil, errors.NewValidationError("at least one server is required", nil)
	}
	if options.ProbeTimeout <= 0 {
		options.ProbeTimeout = DefaultProbeTimeout
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.Out == nil {
		options.Out = io.Discard
	}

	s := &Supervisor{
		options: options,
		units:   make([]*ServerUnit, 0, len(servers)),
		byName:  make(map[string]*ServerUnit, len(servers)),
		gate:    NewBackoffGate(options.StartupDelay),
		running: true,
		logger:  logger,
	}

	for _, server := range servers {
		name := server.ID()
		if _, exists := s.byName[name]; exists {
			return nil, errors.NewConflictError("duplicate server name", nil).WithContext("server", name)
		}
		unit := newServerUnit(server, logger)
		s.units = append(s.units, unit)
		s.byName[name] = unit
	}

	logger.Infof("Supervisor created, servers: %d, startup delay: %v, continue on healthy probe: %t",
		len(s.units), options.StartupDelay, options.ContinueOnHealthyProbe)
	return s, nil
}

// Units returns the servers in configuration order
func (s *Supervisor) Units() []*ServerUnit {
	return s.units
}

func (s *Supervisor) Unit(name string) (*ServerUnit, bool) {
	unit, ok := s.byName[name]
	return unit, ok
}

func (s *Supervisor) Running() bool {
	return s.running
}

// Shutdown marks the supervisor as finished; the scheduler exits after the current step
func (s *Supervisor) Shutdown() {
	s.running = false
}

// PendingStart names the most recently started server while its backoff window is tracked
func (s *Supervisor) PendingStart() string {
	return s.pending
}

// CheckIn runs one cycle: status report, then the restart pass in configuration order.
// Per-server failures are logged and never abort the cycle.
func (s *Supervisor) CheckIn(ctx context.Context) *StatusReport {
	statuses := s.report(ctx)
	s.releaseOnHealthyProbe(statuses)

	for _, unit := range s.units {
		s.enforce(ctx, unit)
	}

	s.options.Metrics.CheckIn()
	s.probed = statuses
	report := s.buildReport(statuses)
	if s.options.OnCheckIn != nil {
		s.options.OnCheckIn(report)
	}
	return report
}

// releaseOnHealthyProbe clears the backoff window once the pending server answers its probe
func (s *Supervisor) releaseOnHealthyProbe(statuses []ServerStatus) {
	if s.pending == "" {
		return
	}
	if s.gate.Remaining(s.options.Now()) == 0 {
		s.pending = ""
		return
	}
	if !s.options.ContinueOnHealthyProbe {
		return
	}
	for _, server := range statuses {
		if server.Name == s.pending && server.Online() {
			s.logger.Infof("Server %s answered its health probe, releasing the startup backoff", s.pending)
			s.gate.Release()
			s.pending = ""
			return
		}
	}
}

func (s *Supervisor) enforce(ctx context.Context, unit *ServerUnit) {
	defer func() {
		if r := recover(); r != nil {
			unit.logger.Errorf("Recovered from panic while supervising: %v", r)
		}
	}()

	now := s.options.Now()

	if !unit.IsAlive() {
		if !s.gate.TryConsume(now) {
			unit.logger.Infof("Not starting server, in backoff period for another %v", s.gate.Remaining(now))
			s.options.Metrics.Throttled(unit.Name())
			return
		}
		unit.logger.Debugf("Server is not alive, starting")
		s.start(ctx, unit)
		return
	}

	age, _ := unit.Age(now)
	threshold := unit.Config.RestartThreshold()
	if age <= threshold {
		unit.logger.Debugf("Server is alive for %v", age.Truncate(time.Second))
		return
	}

	if !s.gate.TryConsume(now) {
		unit.logger.Infof("Not restarting server alive for %v, in backoff period for another %v",
			age.Truncate(time.Second), s.gate.Remaining(now))
		s.options.Metrics.Throttled(unit.Name())
		return
	}

	unit.logger.Infof("Server is alive for %v, over its %v threshold, restarting", age.Truncate(time.Second), threshold)
	s.options.Metrics.Restarted(unit.Name(), "age")
	if err := s.stop(ctx, unit); err != nil {
		// The old process may still hold the ports, the next check-in retries the stop
		return
	}
	s.start(ctx, unit)
}

// start launches the unit. The gate must already be consumed.
func (s *Supervisor) start(ctx context.Context, unit *ServerUnit) {
	unit.logger.Infof("Starting server")

	handle, err := s.options.Launcher.Launch(ctx, unit.Name(), executionConfig(unit.Config))
	if err != nil {
		unit.logger.Errorf("Failed to start server: %v", err)
		unit.handle = nil
		unit.startedAt = time.Time{}
		s.options.Metrics.StartFailed(unit.Name())
		return
	}

	unit.handle = handle
	unit.startedAt = s.options.Now()
	s.pending = unit.Name()
	s.options.Metrics.Started(unit.Name())
	unit.logger.Infof("Server started with pid %d", handle.PID())
}

// stop terminates the unit's process if alive: graceful first, then a kill after the grace period
func (s *Supervisor) stop(ctx context.Context, unit *ServerUnit) error {
	if !unit.IsAlive() {
		unit.logger.Debugf("No server process to stop")
		return nil
	}

	unit.logger.Infof("Stopping server")
	if err := unit.handle.Stop(ctx); err != nil {
		unit.logger.Errorf("Failed to stop server: %v", err)
		return errors.NewProcessError("failed to stop server", err).WithContext("server", unit.Name())
	}

	s.options.Metrics.Stopped(unit.Name())
	unit.logger.Infof("Server stopped")
	return nil
}

// RestartServer stops the named server and starts it again once the backoff gate allows.
// A throttled start is picked up by the next check-in.
func (s *Supervisor) RestartServer(ctx context.Context, name string) error {
	unit, ok := s.byName[name]
	if !ok {
		return errors.NewNotFoundError("server not found", nil).WithContext("server", name)
	}

	s.logger.Infof("Restart requested for server %s", name)
	s.options.Metrics.Restarted(name, "manual")

	if err := s.stop(ctx, unit); err != nil {
		return err
	}

	now := s.options.Now()
	if !s.gate.TryConsume(now) {
		unit.logger.Infof("Not starting server, in backoff period for another %v", s.gate.Remaining(now))
		s.options.Metrics.Throttled(name)
		return nil
	}
	s.start(ctx, unit)
	return nil
}

// StopAll stops every server once, in configuration order
func (s *Supervisor) StopAll(ctx context.Context) error {
	collection := errors.NewErrorCollection()
	for _, unit := range s.units {
		collection.Add(s.stop(ctx, unit))
	}
	return collection.ToError()
}

func executionConfig(server config.ServerConfig) process.ExecutionConfig {
	execution := process.ExecutionConfig{
		ExecutablePath: server.ExecutablePath(),
		Args:           server.LaunchArgs(),
	}
	if server.BasePath != "" {
		if abs, err := filepath.Abs(server.BasePath); err == nil {
			execution.WorkingDirectory = abs
		}
	}
	return execution
}

func (s *Supervisor) String() string {
	return fmt.Sprintf("Supervisor{servers: %d, running: %t, pending: %q}", len(s.units), s.running, s.pending)
}
