// Package metrics provides Prometheus instrumentation for the Verdict platform.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verdict",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verdict",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// VerificationsTotal counts transaction verifications by decision.
	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verdict",
			Name:      "verifications_total",
			Help:      "Total transaction verifications by decision.",
		},
		[]string{"decision"},
	)

	// VerificationDuration observes end-to-end scoring latency.
	VerificationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "verdict",
		Name:      "verification_duration_seconds",
		Help:      "Time to score a single transaction in seconds.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// RateLimitDeniedTotal counts requests denied by the rate limiter, by tier.
	RateLimitDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verdict",
			Name:      "ratelimit_denied_total",
			Help:      "Total requests denied by the rate limiter, by partner tier.",
		},
		[]string{"tier"},
	)

	// CacheOpsTotal counts cache lookups by category and result (hit/miss).
	CacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verdict",
			Name:      "cache_ops_total",
			Help:      "Cache lookups by category and result.",
		},
		[]string{"category", "result"},
	)

	// TrainingRunsTotal counts training runs by outcome
	// (trained, insufficient_data, skipped, failed).
	TrainingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verdict",
			Name:      "training_runs_total",
			Help:      "Model training runs by outcome.",
		},
		[]string{"outcome"},
	)

	// TrainingDuration observes how long a training run takes.
	TrainingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "verdict",
		Name:      "training_duration_seconds",
		Help:      "Model training run duration in seconds.",
		Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300},
	})

	// ModelVersion tracks the version (unix seconds) of the active model.
	ModelVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "verdict",
		Name:      "model_version",
		Help:      "Version (unix timestamp) of the model currently serving scores.",
	})

	// ActiveFeedClients tracks connected decision-feed WebSocket clients.
	ActiveFeedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "verdict",
		Name:      "active_feed_clients",
		Help:      "Number of currently connected decision feed clients.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "verdict", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "verdict", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "verdict", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "verdict", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		VerificationsTotal,
		VerificationDuration,
		RateLimitDeniedTotal,
		CacheOpsTotal,
		TrainingRunsTotal,
		TrainingDuration,
		ModelVersion,
		ActiveFeedClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
