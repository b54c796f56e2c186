package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry holds every gameshake metric. It is separate from the default
	// registry so textfile exports only contain gameshake series.
	Registry = prometheus.NewRegistry()

	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gameshake_api_requests_total",
		Help: "Total number of API requests issued, by method and response code",
	}, []string{"method", "code"})
	APIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gameshake_api_request_duration_seconds",
		Help:    "Latency of single API request attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gameshake_api_retries_total",
		Help: "Total number of API request retries, by reason",
	}, []string{"reason"})
	AuthOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gameshake_auth_operations_total",
		Help: "Authentication operations by kind (cached, refresh, authenticate) and result",
	}, []string{"operation", "result"})
	PagesFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gameshake_pages_fetched_total",
		Help: "Total number of result pages received",
	}, []string{"resource"})
	RecordsFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gameshake_records_fetched_total",
		Help: "Total number of records received",
	}, []string{"resource"})
)

func init() {
	Registry.MustRegister(APIRequests)
	Registry.MustRegister(APIRequestDuration)
	Registry.MustRegister(APIRetries)
	Registry.MustRegister(AuthOperations)
	Registry.MustRegister(PagesFetched)
	Registry.MustRegister(RecordsFetched)
}

// WriteTextfile writes the current values of all gameshake metrics to path in
// the Prometheus text format, atomically.
func WriteTextfile(path string) error {
	if path == "" {
		return errors.New("metrics file path is required")
	}
	return prometheus.WriteToTextfile(path, Registry)
}
