// Package metrics exposes Prometheus counters for table codecs and API
// connectors.
//
// # Basic Usage
//
//	metrics.RowsWritten.WithLabelValues("csv").Add(float64(n))
//
//	timer := metrics.NewTimer()
//	resp, err := client.Do(req)
//	metrics.ObserveRequest("GET", resp.StatusCode, timer.Stop())
//
// All collectors register with the default Prometheus registry on init.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsWritten counts rows encoded to a file, labeled by format
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_table_rows_written_total",
			Help: "Total number of rows written by table codecs",
		},
		[]string{"format"},
	)

	// RowsRead counts rows decoded from a file, labeled by format
	RowsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_table_rows_read_total",
			Help: "Total number of rows read by table codecs",
		},
		[]string{"format"},
	)

	// HTTPRequests counts connector requests by method and status code.
	// Transport failures use code "error".
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_table_http_requests_total",
			Help: "Total number of API connector requests",
		},
		[]string{"method", "code"},
	)

	// HTTPLatency tracks connector request latency in seconds
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebula_table_http_request_duration_seconds",
			Help:    "API connector request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// ObserveRequest records one connector request. A code of 0 means the
// request never produced a response.
func ObserveRequest(method string, code int, elapsed time.Duration) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	HTTPRequests.WithLabelValues(method, label).Inc()
	HTTPLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Timer captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time since the timer was created.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
