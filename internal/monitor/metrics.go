package monitor

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector registers and updates the service metrics
type MetricsCollector struct {
	// Business metrics
	validationTotal     *prometheus.CounterVec
	validationDuration  *prometheus.HistogramVec
	stockLockTotal      *prometheus.CounterVec
	stockLockActive     prometheus.Gauge
	stockSweepTotal     prometheus.Counter
	notificationTotal   *prometheus.CounterVec
	priceBreakdownTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestTotal    *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewMetricsCollector creates and registers the metrics collector
func NewMetricsCollector(namespace string) *MetricsCollector {
	mc := &MetricsCollector{}

	mc.validationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_validation_total",
			Help:      "Total number of order validation decisions",
		},
		[]string{"stage", "action", "outcome"},
	)

	mc.validationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_validation_duration_seconds",
			Help:      "Duration of order validation calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	mc.stockLockTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_lock_total",
			Help:      "Total number of stock reservation operations",
		},
		[]string{"operation", "outcome"},
	)

	mc.stockLockActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stock_lock_active",
			Help:      "Number of active stock reservations",
		},
	)

	mc.stockSweepTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_sweep_released_total",
			Help:      "Total number of expired reservations released by the sweeper",
		},
	)

	mc.notificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_total",
			Help:      "Total number of buyer notifications published",
		},
		[]string{"topic", "outcome"},
	)

	mc.priceBreakdownTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_breakdown_total",
			Help:      "Total number of price breakdown computations",
		},
		[]string{"commission_source"},
	)

	mc.httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	mc.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return mc
}

// All recorders accept a nil receiver so callers without a live registry,
// such as tests, can skip metrics without branching.

// RecordValidation records a validation decision
func (mc *MetricsCollector) RecordValidation(stage, action, outcome string, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.validationTotal.WithLabelValues(stage, action, outcome).Inc()
	mc.validationDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordStockLock records a reservation operation
func (mc *MetricsCollector) RecordStockLock(operation, outcome string) {
	if mc == nil {
		return
	}
	mc.stockLockTotal.WithLabelValues(operation, outcome).Inc()
}

// SetActiveLocks updates the active reservation gauge
func (mc *MetricsCollector) SetActiveLocks(n int) {
	if mc == nil {
		return
	}
	mc.stockLockActive.Set(float64(n))
}

// RecordSweep records reservations released by the sweeper
func (mc *MetricsCollector) RecordSweep(released int) {
	if mc == nil {
		return
	}
	mc.stockSweepTotal.Add(float64(released))
}

// RecordNotification records a published notification
func (mc *MetricsCollector) RecordNotification(topic, outcome string) {
	if mc == nil {
		return
	}
	mc.notificationTotal.WithLabelValues(topic, outcome).Inc()
}

// RecordPriceBreakdown records a breakdown computation and its rate source
func (mc *MetricsCollector) RecordPriceBreakdown(commissionSource string) {
	if mc == nil {
		return
	}
	mc.priceBreakdownTotal.WithLabelValues(commissionSource).Inc()
}

// HTTPMetrics gin middleware recording request counts and latency
func (mc *MetricsCollector) HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		mc.httpRequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		mc.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the prometheus scrape endpoint
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
