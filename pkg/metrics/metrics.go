package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IntentSyncTotal counts reconciliation outcomes per result ("synced"/"error").
	IntentSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intentdesk",
		Name:      "intent_sync_total",
		Help:      "Intent reconciliation outcomes by result.",
	}, []string{"result"})

	// ReconcileRuns counts full reconciliation batches.
	ReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "intentdesk",
		Name:      "reconcile_runs_total",
		Help:      "Completed reconciliation batches.",
	})

	// MessagesRecorded counts appended conversation turns by role.
	MessagesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intentdesk",
		Name:      "messages_recorded_total",
		Help:      "Conversation turns appended by role.",
	}, []string{"role"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intentdesk",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "intentdesk",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the prometheus scrape endpoint as a gin handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
