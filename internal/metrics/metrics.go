package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Allocation results.
const (
	ResultAllocated    = "allocated"
	ResultDisabled     = "disabled"
	ResultUnknownSlave = "unknown_slave"
	ResultNoAllocation = "no_allocation"
	ResultError        = "error"
)

var (
	AllocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slavealloc_allocations_total",
			Help: "Total number of allocation requests by result",
		},
		[]string{"result"},
	)

	AllocationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slavealloc_allocation_duration_seconds",
			Help:    "Time taken to resolve and commit an allocation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slavealloc_http_requests_total",
			Help: "Total number of tac requests by status code",
		},
		[]string{"code"},
	)
)

func init() {
	prometheus.MustRegister(AllocationsTotal)
	prometheus.MustRegister(AllocationDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// ObserveAllocation records one allocation attempt.
func ObserveAllocation(result string, start time.Time) {
	AllocationsTotal.WithLabelValues(result).Inc()
	AllocationDuration.Observe(time.Since(start).Seconds())
}

// ObserveHTTP records one tac response.
func ObserveHTTP(code int) {
	HTTPRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
