package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Network monitor metrics
	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "usher_probe_duration_seconds",
			Help:    "Liveness probe round-trip time in seconds",
			Buckets: []float64{.025, .05, .1, .3, .5, 1, 2.5, 5},
		},
	)

	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usher_probes_total",
			Help: "Total number of liveness probes by outcome",
		},
		[]string{"outcome"},
	)

	NetworkOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "usher_network_online",
			Help: "Whether the network is currently considered online (1 = online or slow, 0 = offline/unknown)",
		},
	)

	NetworkTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usher_network_transitions_total",
			Help: "Total number of network status transitions by new status",
		},
		[]string{"status"},
	)

	// Sync metrics
	SyncPassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "usher_sync_passes_total",
			Help: "Total number of drain passes over the offline queue",
		},
	)

	SyncPassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "usher_sync_pass_duration_seconds",
			Help:    "Duration of one drain pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usher_sync_operations_total",
			Help: "Total replayed offline operations by outcome",
		},
		[]string{"outcome"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "usher_queue_depth",
			Help: "Number of operations currently persisted in the offline queue",
		},
	)

	// Domain metrics
	CheckInsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usher_checkins_total",
			Help: "Total check-in attempts by result",
		},
		[]string{"result"},
	)

	// Record-store server metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usher_api_requests_total",
			Help: "Total record-store API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "usher_api_request_duration_seconds",
			Help:    "Record-store API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(ProbesTotal)
	prometheus.MustRegister(NetworkOnline)
	prometheus.MustRegister(NetworkTransitionsTotal)
	prometheus.MustRegister(SyncPassesTotal)
	prometheus.MustRegister(SyncPassDuration)
	prometheus.MustRegister(SyncOperationsTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(CheckInsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
