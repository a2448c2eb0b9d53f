package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// DatasetLoads counts load attempts by origin and result
	DatasetLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_dataset_loads_total",
			Help: "Total number of dataset load attempts",
		},
		[]string{"origin", "result"}, // origin: source, snapshot; result: success, error
	)

	// DatasetLoadDuration measures how long a load from the source takes
	DatasetLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airquality_dataset_load_duration_seconds",
			Help:    "Dataset load duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"origin"},
	)

	// DatasetRows tracks the size of the dataset currently served
	DatasetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airquality_dataset_rows",
			Help: "Number of readings in the dataset currently served",
		},
	)

	// CacheLookups counts dataset cache lookups by layer and result
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_cache_lookups_total",
			Help: "Total number of dataset cache lookups",
		},
		[]string{"layer", "result"}, // layer: memory, snapshot; result: hit, miss
	)

	// Notifications counts RFM summary publishes
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_notifications_total",
			Help: "Total number of RFM summary notifications",
		},
		[]string{"result"}, // result: published, failed
	)

	// HTTPRequestDuration measures request latency by route pattern
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airquality_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordLoad records a dataset load attempt
func RecordLoad(origin string, err error, seconds float64) {
	result := "success"
	if err != nil {
		result = "error"
	}
	DatasetLoads.WithLabelValues(origin, result).Inc()
	DatasetLoadDuration.WithLabelValues(origin).Observe(seconds)
}

// RecordCacheLookup records a cache hit or miss
func RecordCacheLookup(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(layer, result).Inc()
}

// RecordNotification records a notifier publish
func RecordNotification(err error) {
	result := "published"
	if err != nil {
		result = "failed"
	}
	Notifications.WithLabelValues(result).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
