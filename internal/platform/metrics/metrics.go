package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the live segmenter.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	framesIngestedTotal   prometheus.Counter
	fragmentsClosedTotal  prometheus.Counter
	sessionsPlayableTotal prometheus.Counter
	sessionsClosedTotal   *prometheus.CounterVec
	activeSessions        prometheus.Gauge
	activeStreams         prometheus.Gauge
	fragmentPoolFree      prometheus.Gauge
}

// New creates and registers Prometheus metrics for the segmenter.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	framesIngestedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_frames_ingested_total",
		Help: "Total number of media frames received from publishers",
	})
	fragmentsClosedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_fragments_closed_total",
		Help: "Total number of fragments closed across all sessions",
	})
	sessionsPlayableTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_sessions_playable_total",
		Help: "Total number of sessions that became playable",
	})
	sessionsClosedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hls_sessions_closed_total",
		Help: "Total number of sessions closed, by reason",
	}, []string{"reason"})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hls_active_sessions",
		Help: "Number of attached viewer sessions",
	})
	activeStreams := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hls_active_streams",
		Help: "Number of streams with a publisher or attached sessions",
	})
	fragmentPoolFree := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hls_fragment_pool_free",
		Help: "Fragment records waiting for reuse across all applications",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		framesIngestedTotal,
		fragmentsClosedTotal,
		sessionsPlayableTotal,
		sessionsClosedTotal,
		activeSessions,
		activeStreams,
		fragmentPoolFree,
	)

	return &Metrics{
		registry:              registry,
		requestsTotal:         requestsTotal,
		errorsTotal:           errorsTotal,
		framesIngestedTotal:   framesIngestedTotal,
		fragmentsClosedTotal:  fragmentsClosedTotal,
		sessionsPlayableTotal: sessionsPlayableTotal,
		sessionsClosedTotal:   sessionsClosedTotal,
		activeSessions:        activeSessions,
		activeStreams:         activeStreams,
		fragmentPoolFree:      fragmentPoolFree,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncFramesIngested increments the ingested frames counter.
func (m *Metrics) IncFramesIngested() {
	m.framesIngestedTotal.Inc()
}

// IncFragmentsClosed increments the closed fragments counter.
func (m *Metrics) IncFragmentsClosed() {
	m.fragmentsClosedTotal.Inc()
}

// IncSessionsPlayable increments the playable sessions counter.
func (m *Metrics) IncSessionsPlayable() {
	m.sessionsPlayableTotal.Inc()
}

// IncSessionsClosed increments the closed sessions counter for reason.
func (m *Metrics) IncSessionsClosed(reason string) {
	m.sessionsClosedTotal.WithLabelValues(reason).Inc()
}

// Gauges is a point-in-time snapshot used to refresh gauge values.
type Gauges struct {
	ActiveSessions   int
	ActiveStreams    int
	FragmentPoolFree int
}

// SetGauges sets every gauge from g.
func (m *Metrics) SetGauges(g Gauges) {
	m.activeSessions.Set(float64(g.ActiveSessions))
	m.activeStreams.Set(float64(g.ActiveStreams))
	m.fragmentPoolFree.Set(float64(g.FragmentPoolFree))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
