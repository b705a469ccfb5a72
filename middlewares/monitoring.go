package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_service_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_service_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_service_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation", "status"},
	)

	paymentReconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_service_payment_reconciliations_total",
			Help: "Payment verifications by resulting payment status",
		},
		[]string{"outcome"},
	)

	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "order_service_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit_name"},
	)

	circuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_service_circuit_breaker_failures_total",
			Help: "Total number of calls failed through the circuit breaker",
		},
		[]string{"circuit_name"},
	)

	bulkheadActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "order_service_bulkhead_active_requests",
			Help: "Number of gateway calls in flight",
		},
		[]string{"bulkhead_name"},
	)

	bulkheadRejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_service_bulkhead_rejected_requests_total",
			Help: "Total number of gateway calls rejected by the bulkhead",
		},
		[]string{"bulkhead_name"},
	)
)

// PrometheusMiddleware collects per-route request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()

		httpRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)
	}
}

// RecordOrderOperation counts an order operation by outcome.
func RecordOrderOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	orderOperations.WithLabelValues(operation, status).Inc()
}

// RecordReconciliation counts a verification by its result: the payment status
// it left behind, or "mismatch" when the outcome belonged to another order.
func RecordReconciliation(outcome string) {
	paymentReconciliations.WithLabelValues(outcome).Inc()
}

func SetCircuitState(name string, state float64) {
	circuitBreakerState.WithLabelValues(name).Set(state)
}

func RecordCircuitFailure(name string) {
	circuitBreakerFailures.WithLabelValues(name).Inc()
}

func BulkheadAcquired(name string) {
	bulkheadActiveRequests.WithLabelValues(name).Inc()
}

func BulkheadReleased(name string) {
	bulkheadActiveRequests.WithLabelValues(name).Dec()
}

func BulkheadRejected(name string) {
	bulkheadRejectedRequests.WithLabelValues(name).Inc()
}
