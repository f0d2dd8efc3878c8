package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wms-platform/allocation-service/pkg/metrics"
)

// MetricsConfig holds configuration for metrics middleware
type MetricsConfig struct {
	ServiceName  string
	ExcludePaths []string
}

// DefaultMetricsConfig returns a default metrics configuration
func DefaultMetricsConfig(serviceName string) *MetricsConfig {
	return &MetricsConfig{
		ServiceName:  serviceName,
		ExcludePaths: []string{"/metrics", "/health", "/ready"},
	}
}

// MetricsMiddleware creates middleware that records HTTP metrics
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return MetricsMiddlewareWithConfig(m, DefaultMetricsConfig(""))
}

// MetricsMiddlewareWithConfig creates metrics middleware with custom configuration
func MetricsMiddlewareWithConfig(m *metrics.Metrics, config *MetricsConfig) gin.HandlerFunc {
	excludeMap := make(map[string]bool)
	for _, path := range config.ExcludePaths {
		excludeMap[path] = true
	}

	return func(c *gin.Context) {
		if excludeMap[c.Request.URL.Path] {
			c.Next()
			return
		}

		m.IncrementHTTPRequestsInFlight()
		defer m.DecrementHTTPRequestsInFlight()

		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		method := c.Request.Method
		path := c.FullPath() // route pattern, not the raw path

		if path == "" {
			path = c.Request.URL.Path
		}

		m.RecordHTTPRequest(method, path, status, duration)
	}
}

// MetricsEndpoint returns a handler for the /metrics endpoint
func MetricsEndpoint(m *metrics.Metrics) gin.HandlerFunc {
	handler := m.Handler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// AllocationMetrics provides helpers for recording allocation business metrics
type AllocationMetrics struct {
	metrics *metrics.Metrics
}

// NewAllocationMetrics creates a new AllocationMetrics helper
func NewAllocationMetrics(m *metrics.Metrics) *AllocationMetrics {
	return &AllocationMetrics{metrics: m}
}

// RecordAllocation records an order allocation run outcome
func (a *AllocationMetrics) RecordAllocation(strategy, status string) {
	a.metrics.RecordAllocation(strategy, status)
}

// RecordShortage records an insufficient stock rejection
func (a *AllocationMetrics) RecordShortage(itemRef string) {
	a.metrics.RecordShortage(itemRef)
}

// RecordRollback records an allocation run rollback
func (a *AllocationMetrics) RecordRollback() {
	a.metrics.RecordRollback()
}

// RecordLockTimeout records a contended-row timeout
func (a *AllocationMetrics) RecordLockTimeout() {
	a.metrics.RecordLockTimeout()
}

// RecordIntegrityFailure records a checksum or aggregate mismatch
func (a *AllocationMetrics) RecordIntegrityFailure(kind string) {
	a.metrics.RecordIntegrityFailure(kind)
}

// RecordCircuitBreakerState records circuit breaker state
func (a *AllocationMetrics) RecordCircuitBreakerState(name string, state int) {
	a.metrics.SetCircuitBreakerState(name, state)
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (a *AllocationMetrics) RecordCircuitBreakerTrip(name string) {
	a.metrics.RecordCircuitBreakerTrip(name)
}
