package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector spyconsole exports.
// It satisfies feed.Observer.
type Metrics struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer

	commands *prometheus.CounterVec
	requests *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	polls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spyconsole_polls_total",
		Help: "Event log fetches attempted against the robot backend.",
	})
	pollErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spyconsole_poll_errors_total",
		Help: "Event log fetches that failed and were swallowed.",
	})
	replacements := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spyconsole_event_list_replacements_total",
		Help: "Times the event list was replaced by different content.",
	})
	timeframes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spyconsole_timeframes_marked_total",
		Help: "Timeline selections committed by operators.",
	})
	events := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spyconsole_events",
		Help: "Events in the most recently fetched list.",
	})
	version := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spyconsole_event_list_version",
		Help: "Current event list version.",
	})
	wsClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spyconsole_ws_clients",
		Help: "Connected websocket clients.",
	})
	pollLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "spyconsole_poll_duration_seconds",
		Help:    "Time taken to fetch the event log.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spyconsole_robot_commands_total",
		Help: "Movement and action commands relayed to the robot.",
	}, []string{"action", "result"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spyconsole_http_requests_total",
		Help: "API requests by route and status code class.",
	}, []string{"route", "code"})

	reg.MustRegister(polls, pollErrors, replacements, timeframes, events, version,
		wsClients, pollLatency, commands, requests)

	return &Metrics{
		counters: map[string]prometheus.Counter{
			"spyconsole_polls_total":                   polls,
			"spyconsole_poll_errors_total":             pollErrors,
			"spyconsole_event_list_replacements_total": replacements,
			"spyconsole_timeframes_marked_total":       timeframes,
		},
		gauges: map[string]prometheus.Gauge{
			"spyconsole_events":             events,
			"spyconsole_event_list_version": version,
			"spyconsole_ws_clients":         wsClients,
		},
		histos: map[string]prometheus.Observer{
			"spyconsole_poll_duration_seconds": pollLatency,
		},
		commands: commands,
		requests: requests,
	}
}

// PollDone records one event log fetch.
func (m *Metrics) PollDone(err error, d time.Duration, n int) {
	m.counters["spyconsole_polls_total"].Inc()
	m.histos["spyconsole_poll_duration_seconds"].Observe(d.Seconds())
	if err != nil {
		m.counters["spyconsole_poll_errors_total"].Inc()
		return
	}
	m.gauges["spyconsole_events"].Set(float64(n))
}

// Replaced records a new event list version.
func (m *Metrics) Replaced(version uint64) {
	m.counters["spyconsole_event_list_replacements_total"].Inc()
	m.gauges["spyconsole_event_list_version"].Set(float64(version))
}

// CommandSent records a relayed robot command.
func (m *Metrics) CommandSent(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(action, result).Inc()
}

// TimeframeMarked records a committed timeline selection.
func (m *Metrics) TimeframeMarked() {
	m.counters["spyconsole_timeframes_marked_total"].Inc()
}

// WSClientDelta adjusts the connected websocket client gauge.
func (m *Metrics) WSClientDelta(delta int) {
	m.gauges["spyconsole_ws_clients"].Add(float64(delta))
}

// Request records an API request. code is the HTTP status.
func (m *Metrics) Request(route string, code int) {
	m.requests.WithLabelValues(route, codeClass(code)).Inc()
}

func codeClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
