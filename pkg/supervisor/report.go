package supervisor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/probe"

	"golang.org/x/sync/errgroup"
)

// ServerStatus is one server's line of a status report
type ServerStatus struct {
	Name          string            `json:"name"`
	DisplayName   string            `json:"display_name,omitempty"`
	Alive         bool              `json:"alive"`
	PID           int               `json:"pid,omitempty"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	UptimeMinutes int               `json:"uptime_minutes"`
	Info          *probe.ServerInfo `json:"info,omitempty"`
}

// Online is true when the server answered its health probe
func (s ServerStatus) Online() bool {
	return s.Info != nil
}

// Line renders "name (ip:port) | players/max | uptime min" or "name | no data"
func (s ServerStatus) Line() string {
	if !s.Alive || s.Info == nil {
		return s.Name + " | no data"
	}
	return fmt.Sprintf("%s (%s) | %d/%d | %d min",
		s.Name, s.endpoint(), s.Info.Players, s.Info.MaxPlayers, s.UptimeMinutes)
}

func (s ServerStatus) endpoint() string {
	host, port, err := net.SplitHostPort(s.Info.Address)
	if err != nil {
		return s.Info.Address
	}
	if s.Info.GamePort != 0 {
		port = strconv.Itoa(s.Info.GamePort)
	}
	return net.JoinHostPort(host, port)
}

type StatusReport struct {
	Time                    time.Time      `json:"time"`
	Running                 bool           `json:"running"`
	PendingStart            string         `json:"pending_start,omitempty"`
	BackoffRemainingSeconds int            `json:"backoff_remaining_seconds"`
	Servers                 []ServerStatus `json:"servers"`
}

// report probes every alive server concurrently, each bounded by the probe timeout,
// and prints one status line per server in configuration order
func (s *Supervisor) report(ctx context.Context) []ServerStatus {
	now := s.options.Now()
	statuses := make([]ServerStatus, len(s.units))

	var g errgroup.Group
	for i, unit := range s.units {
		statuses[i] = s.statusOf(unit, now)

		address := unit.Config.QueryAddress()
		if s.options.Prober == nil || !statuses[i].Alive || address == "" {
			continue
		}

		i, unit := i, unit
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, s.options.ProbeTimeout)
			defer cancel()

			info, err := s.options.Prober.Query(probeCtx, address)
			if err != nil {
				unit.logger.Debugf("Health probe got no answer: %v", err)
				s.options.Metrics.ProbeFailed(unit.Name())
				return nil
			}
			statuses[i].Info = info
			return nil
		})
	}
	// Probe failures are "no data", never errors
	_ = g.Wait()

	for _, status := range statuses {
		fmt.Fprintln(s.options.Out, status.Line())
		s.options.Metrics.SetAlive(status.Name, status.Alive)
		if status.Info != nil {
			s.options.Metrics.SetPlayers(status.Name, status.Info.Players)
		}
	}
	return statuses
}

func (s *Supervisor) statusOf(unit *ServerUnit, now time.Time) ServerStatus {
	status := ServerStatus{
		Name:        unit.Name(),
		DisplayName: unit.Config.Name,
		Alive:       unit.IsAlive(),
		PID:         unit.PID(),
	}
	if startedAt, ok := unit.StartedAt(); ok {
		status.StartedAt = &startedAt
		age, _ := unit.Age(now)
		status.UptimeMinutes = int(age / time.Minute)
	}
	return status
}

// buildReport snapshots the units after a restart pass. Probe data is kept only for
// servers still running the process that was probed.
func (s *Supervisor) buildReport(probed []ServerStatus) *StatusReport {
	now := s.options.Now()
	report := &StatusReport{
		Time:                    now,
		Running:                 s.running,
		PendingStart:            s.pending,
		BackoffRemainingSeconds: int(s.gate.Remaining(now) / time.Second),
		Servers:                 make([]ServerStatus, len(s.units)),
	}

	for i, unit := range s.units {
		status := s.statusOf(unit, now)
		if i < len(probed) && probed[i].PID == status.PID && status.Alive {
			status.Info = probed[i].Info
		}
		report.Servers[i] = status
	}
	return report
}

// Snapshot reports the current unit state with the probe data of the last check-in.
// It never probes.
func (s *Supervisor) Snapshot() *StatusReport {
	return s.buildReport(s.probed)
}
