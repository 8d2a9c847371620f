package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gamemaster"

// Metrics holds the supervisor collectors. A nil *Metrics records nothing.
type Metrics struct {
	checkIns      prometheus.Counter
	starts        *prometheus.CounterVec
	startFailures *prometheus.CounterVec
	throttled     *prometheus.CounterVec
	restarts      *prometheus.CounterVec
	stops         *prometheus.CounterVec
	probeFailures *prometheus.CounterVec
	alive         *prometheus.GaugeVec
	players       *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		checkIns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Completed check-in cycles",
		}),
		starts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_starts_total",
			Help:      "Server processes started",
		}, []string{"server"}),
		startFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_start_failures_total",
			Help:      "Server launches that failed",
		}, []string{"server"}),
		throttled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_starts_throttled_total",
			Help:      "Start attempts denied by the backoff window",
		}, []string{"server"}),
		restarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_restarts_total",
			Help:      "Server restarts by reason",
		}, []string{"server", "reason"}),
		stops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_stops_total",
			Help:      "Server processes stopped",
		}, []string{"server"}),
		probeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_failures_total",
			Help:      "Health probes that got no answer",
		}, []string{"server"}),
		alive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_alive",
			Help:      "1 when the server process is alive",
		}, []string{"server"}),
		players: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_players",
			Help:      "Players reported by the last probe",
		}, []string{"server"}),
	}
}

func (m *Metrics) CheckIn() {
	if m == nil {
		return
	}
	m.checkIns.Inc()
}

func (m *Metrics) Started(server string) {
	if m == nil {
		return
	}
	m.starts.WithLabelValues(server).Inc()
}

func (m *Metrics) StartFailed(server string) {
	if m == nil {
		return
	}
	m.startFailures.WithLabelValues(server).Inc()
}

func (m *Metrics) Throttled(server string) {
	if m == nil {
		return
	}
	m.throttled.WithLabelValues(server).Inc()
}

// Restarted records a restart; reason is "age" or "manual"
func (m *Metrics) Restarted(server, reason string) {
	if m == nil {
		return
	}
	m.restarts.WithLabelValues(server, reason).Inc()
}

func (m *Metrics) Stopped(server string) {
	if m == nil {
		return
	}
	m.stops.WithLabelValues(server).Inc()
}

func (m *Metrics) ProbeFailed(server string) {
	if m == nil {
		return
	}
	m.probeFailures.WithLabelValues(server).Inc()
}

func (m *Metrics) SetAlive(server string, alive bool) {
	if m == nil {
		return
	}
	v := 0.0
	if alive {
		v = 1
	}
	m.alive.WithLabelValues(server).Set(v)
}

func (m *Metrics) SetPlayers(server string, players int) {
	if m == nil {
		return
	}
	m.players.WithLabelValues(server).Set(float64(players))
}

// Handler serves the gatherer in the Prometheus exposition format
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
