package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// HTTP endpoints
	EndpointState         = "state"
	EndpointClients       = "clients"
	EndpointWorkouts      = "workouts"
	EndpointWorkoutStatus = "workout_status"
	EndpointTheme         = "theme"
	EndpointHealth        = "health"

	// Resolver entities
	EntityClients  = "clients"
	EntityWorkouts = "workouts"
	EntityCoach    = "coach"

	// Resolution paths
	PathDirect       = "direct"
	PathRelationship = "relationship"
	PathEmpty        = "empty"
	PathCreated      = "created"

	// Refresh results
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultStale   = "stale_discarded"

	// Snapshot operations
	SnapshotOpSave = "save"
	SnapshotOpLoad = "load"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)
)

// Remote store metrics
var (
	StoreRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_requests_total",
			Help: "Total number of requests to the remote store",
		},
		[]string{"collection", "method", "status_code"},
	)

	StoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_request_duration_seconds",
			Help:    "Remote store request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"collection", "method", "status_code"},
	)

	StoreRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_retries_total",
			Help: "Total number of retried store requests",
		},
	)
)

// Resolver metrics
var (
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_resolutions_total",
			Help: "Total number of resolutions by entity and linkage path taken",
		},
		[]string{"entity", "path"},
	)

	StatsFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_stats_fallbacks_total",
			Help: "Total number of stats resolutions degraded to zero values",
		},
	)
)

// Session metrics
var (
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_refreshes_total",
			Help: "Total number of view-model refreshes by result",
		},
		[]string{"result"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_refresh_duration_seconds",
			Help:    "Time to rebuild a full view-model snapshot",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Number of coach sessions currently held in memory",
		},
	)
)

// Snapshot store metrics
var (
	SnapshotOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_ops_total",
			Help: "Total number of offline snapshot store operations",
		},
		[]string{"operation", "result"},
	)

	StaleServesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_stale_serves_total",
			Help: "Total number of requests served from the offline snapshot",
		},
	)
)

// Refresher metrics
var (
	RefresherCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresher_cycles_total",
			Help: "Total number of background refresher cycles by result",
		},
		[]string{"result"},
	)

	RefresherActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refresher_active",
			Help: "Whether the background refresher is currently active (1) or not (0)",
		},
	)
)

// Bot metrics
var (
	BotUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of bot updates handled",
		},
		[]string{"kind"},
	)
)
