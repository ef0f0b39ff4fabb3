// Package metrics provides Prometheus metrics for the drive server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gopan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gopan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Tree metrics
	treeMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gopan_tree_mutations_total",
			Help: "Committed file tree mutations",
		},
		[]string{"type"},
	)

	drivesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gopan_drives_active",
			Help: "Number of drives loaded in memory",
		},
	)

	quotaExceededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gopan_quota_exceeded_total",
			Help: "Total quota exceeded rejections",
		},
		[]string{"stage"},
	)

	// Upload metrics
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gopan_uploads_total",
			Help: "Finished upload sessions by outcome",
		},
		[]string{"state"},
	)

	uploadBytesCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gopan_upload_bytes_committed_total",
			Help: "Bytes committed by finished uploads",
		},
	)

	// Sharing metrics
	shareLinksIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gopan_share_links_issued_total",
			Help: "Total share links issued",
		},
	)

	shareResolvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gopan_share_resolves_total",
			Help: "Public share link lookups",
		},
		[]string{"result"},
	)

	purchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gopan_purchases_total",
			Help: "Plan purchases",
		},
		[]string{"plan", "result"},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gopan_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gopan_sse_events_total",
			Help: "Total SSE events published",
		},
		[]string{"type"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request counts and latency.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMutation counts a committed tree change.
func RecordMutation(changeType string) {
	treeMutationsTotal.WithLabelValues(changeType).Inc()
}

// SetDrivesActive sets the loaded drive gauge.
func SetDrivesActive(n int) {
	drivesActive.Set(float64(n))
}

// RecordQuotaExceeded counts a rejection; stage is "create", "commit" or
// "precheck".
func RecordQuotaExceeded(stage string) {
	quotaExceededTotal.WithLabelValues(stage).Inc()
}

// RecordUpload counts a finished upload.
func RecordUpload(state string, bytes int64) {
	uploadsTotal.WithLabelValues(state).Inc()
	if bytes > 0 {
		uploadBytesCommitted.Add(float64(bytes))
	}
}

func RecordShareIssued() {
	shareLinksIssued.Inc()
}

func RecordShareResolve(found bool) {
	result := "found"
	if !found {
		result = "missing"
	}
	shareResolvesTotal.WithLabelValues(result).Inc()
}

func RecordPurchase(plan string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	purchasesTotal.WithLabelValues(plan, result).Inc()
}

func SetSSEConnectionsActive(n int64) {
	sseConnectionsActive.Set(float64(n))
}

func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}
