// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidtube_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidtube_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidtube_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	MediaUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidtube_media_uploads_total",
			Help: "Asset uploads to the object store by kind and result",
		},
		[]string{"kind", "result"},
	)

	AssetCleanupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidtube_asset_cleanup_failures_total",
			Help: "Best-effort remote asset deletions that failed",
		},
		[]string{"kind"},
	)

	Toggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidtube_toggles_total",
			Help: "Like and subscription toggles by target and resulting state",
		},
		[]string{"target", "state"},
	)
)

// RecordHTTPRequest observes a finished request. route is the matched pattern, not the raw path.
func RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RecordUpload counts an asset upload attempt.
func RecordUpload(kind string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	MediaUploads.WithLabelValues(kind, result).Inc()
}

// RecordToggle counts the outcome of a like or subscription toggle.
func RecordToggle(target string, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	Toggles.WithLabelValues(target, state).Inc()
}
