package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	requestsTotal          *prometheus.CounterVec
	requestLatencySeconds  *prometheus.HistogramVec
	taskMutationsTotal     *prometheus.CounterVec
	versionConflictsTotal  prometheus.Counter
	boardConnectionsGauge  prometheus.Gauge
	boardEventsTotal       *prometheus.CounterVec
	activityFeedRequests   *prometheus.CounterVec
	activityAppendFailures prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the board API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		requestLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "board_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		taskMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_task_mutations_total",
			Help: "Task mutations processed, labelled by action and outcome.",
		}, []string{"action", "outcome"})

		versionConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_version_conflicts_total",
			Help: "Updates rejected because the caller's version was stale.",
		})

		boardConnectionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "board_websocket_connections",
			Help: "Currently connected board sessions.",
		})

		boardEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_events_published_total",
			Help: "Board events fanned out to sessions, labelled by event type.",
		}, []string{"type"})

		activityFeedRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_activity_feed_requests_total",
			Help: "Activity feed reads, labelled by cache result.",
		}, []string{"result"})

		activityAppendFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_activity_append_failures_total",
			Help: "Activity log writes that failed and were swallowed.",
		})

		prometheus.MustRegister(
			requestsTotal,
			requestLatencySeconds,
			taskMutationsTotal,
			versionConflictsTotal,
			boardConnectionsGauge,
			boardEventsTotal,
			activityFeedRequests,
			activityAppendFailures,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// RequestLatency exposes the latency histogram for API requests.
func RequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatencySeconds
}

// TaskMutations exposes the task mutation counter.
func TaskMutations() *prometheus.CounterVec {
	RegisterMetrics()
	return taskMutationsTotal
}

// VersionConflicts exposes the stale-version rejection counter.
func VersionConflicts() prometheus.Counter {
	RegisterMetrics()
	return versionConflictsTotal
}

// BoardConnections exposes the live session gauge.
func BoardConnections() prometheus.Gauge {
	RegisterMetrics()
	return boardConnectionsGauge
}

// BoardEvents exposes the published event counter.
func BoardEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return boardEventsTotal
}

// ActivityFeedRequests exposes the feed cache result counter.
func ActivityFeedRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return activityFeedRequests
}

// ActivityAppendFailures exposes the swallowed log write counter.
func ActivityAppendFailures() prometheus.Counter {
	RegisterMetrics()
	return activityAppendFailures
}
