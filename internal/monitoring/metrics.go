package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Contact relay metrics
	ContactSubmissions *prometheus.CounterVec
	MailSendDuration   *prometheus.HistogramVec
	LedgerEntries      prometheus.Gauge
	LedgerEvictions    prometheus.Counter

	// Review metrics
	ReviewsCreated *prometheus.CounterVec
	ReviewsDeleted *prometheus.CounterVec

	// Admin metrics
	AdminAuthFailures *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	CacheErrors *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	DBAvailable         prometheus.Gauge

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

var (
	metrics  *Metrics
	initOnce sync.Once
)

// Init initializes all Prometheus metrics
func Init() *Metrics {
	initOnce.Do(func() {
		metrics = newMetrics()
	})
	return metrics
}

func newMetrics() *Metrics {
	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// Contact relay metrics
		ContactSubmissions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_submissions_total",
				Help: "Contact submissions by outcome",
			},
			[]string{"outcome"},
		),
		MailSendDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mail_send_duration_seconds",
				Help:    "Email provider call duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2, 5, 10},
			},
			[]string{"provider", "status"},
		),
		LedgerEntries: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "contact_rate_ledger_entries",
				Help: "Client IPs currently tracked by the contact rate ledger",
			},
		),
		LedgerEvictions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_rate_ledger_evictions_total",
				Help: "Client IPs forgotten because the rate ledger was full",
			},
		),

		// Review metrics
		ReviewsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviews_created_total",
				Help: "Total number of reviews created",
			},
			[]string{"rating"},
		),
		ReviewsDeleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviews_deleted_total",
				Help: "Total number of reviews deleted",
			},
			[]string{"by"},
		),

		AdminAuthFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_auth_failures_total",
				Help: "Rejected admin credentials",
			},
			[]string{"route"},
		),

		// Cache metrics
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
		CacheErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_errors_total",
				Help: "Cache operations that failed open",
			},
			[]string{"cache_type", "op"},
		),

		// Database metrics
		DBConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBAvailable: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_available",
				Help: "1 when the review datastore is connected, 0 in degraded mode",
			},
		),

		// Circuit breaker metrics
		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 0.5=half-open)",
			},
			[]string{"provider"},
		),
	}
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Init()
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordContactSubmission records a contact submission outcome
func RecordContactSubmission(outcome string) {
	Get().ContactSubmissions.WithLabelValues(outcome).Inc()
}

// RecordMailSend records an email provider call
func RecordMailSend(provider string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	Get().MailSendDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
}

// SetLedgerEntries sets the number of tracked client IPs
func SetLedgerEntries(n int) {
	Get().LedgerEntries.Set(float64(n))
}

// RecordLedgerEviction records a client IP dropped from a full ledger
func RecordLedgerEviction() {
	Get().LedgerEvictions.Inc()
}

// RecordReviewCreated records a new review
func RecordReviewCreated(rating int) {
	Get().ReviewsCreated.WithLabelValues(strconv.Itoa(rating)).Inc()
}

// RecordReviewDeleted records a deletion; by is "author" or "admin"
func RecordReviewDeleted(by string) {
	Get().ReviewsDeleted.WithLabelValues(by).Inc()
}

// RecordAdminAuthFailure records a rejected admin credential
func RecordAdminAuthFailure(route string) {
	Get().AdminAuthFailures.WithLabelValues(route).Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheType string) {
	Get().CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheType string) {
	Get().CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordCacheError records a cache failure that was treated as a miss
func RecordCacheError(cacheType, op string) {
	Get().CacheErrors.WithLabelValues(cacheType, op).Inc()
}

// SetDBConnections sets database connection metrics
func SetDBConnections(active, idle int) {
	Get().DBConnectionsActive.Set(float64(active))
	Get().DBConnectionsIdle.Set(float64(idle))
}

// SetDBAvailable flags whether the datastore is connected
func SetDBAvailable(ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	Get().DBAvailable.Set(v)
}

// SetCircuitBreakerState sets the circuit breaker state from its name
func SetCircuitBreakerState(provider, state string) {
	var v float64
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 0.5
	}
	Get().CircuitBreakerState.WithLabelValues(provider).Set(v)
}
