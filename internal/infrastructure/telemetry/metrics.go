package telemetry

import (
	"net/http"
	"strconv"
	"time"

	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/infrastructure/event"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "fulfillment"

// FulfillmentMetrics collects Prometheus metrics for checkout, the ledger,
// the sweeps, the event bus and HTTP traffic
type FulfillmentMetrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	checkouts        *prometheus.CounterVec
	checkoutDuration *prometheus.HistogramVec
	commitRetries    *prometheus.CounterVec
	preordersSwept   *prometheus.CounterVec
	eventsDispatched *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// NewFulfillmentMetrics creates the collectors on a private registry, along
// with the Go runtime and process collectors
func NewFulfillmentMetrics() *FulfillmentMetrics {
	registry := prometheus.NewRegistry()
	m := &FulfillmentMetrics{
		registry: registry,
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "checkouts_total",
			Help:      "Checkouts by order kind and outcome.",
		}, []string{"kind", "outcome"}),
		checkoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "checkout_duration_seconds",
			Help:      "Checkout latency including commit retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		commitRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commit_retries_total",
			Help:      "Commits retried after losing a guarded decrement.",
		}, []string{"kind"}),
		preordersSwept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "preorders_swept_total",
			Help:      "Expired pre-orders handled by the sweeper, by result.",
		}, []string{"result"}),
		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_dispatched_total",
			Help:      "Domain events delivered to handlers, by type and status.",
		}, []string{"event_type", "status"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	registry.MustRegister(
		m.checkouts,
		m.checkoutDuration,
		m.commitRetries,
		m.preordersSwept,
		m.eventsDispatched,
		m.requestsTotal,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// CheckoutCompleted records one checkout
func (m *FulfillmentMetrics) CheckoutCompleted(kind, outcome string, elapsed time.Duration) {
	m.checkouts.WithLabelValues(kind, outcome).Inc()
	m.checkoutDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// CommitRetried records a lost commit attempt
func (m *FulfillmentMetrics) CommitRetried(kind string) {
	m.commitRetries.WithLabelValues(kind).Inc()
}

// PreordersSwept records one sweeper run
func (m *FulfillmentMetrics) PreordersSwept(cancelled, skipped, failed int) {
	m.preordersSwept.WithLabelValues("cancelled").Add(float64(cancelled))
	m.preordersSwept.WithLabelValues("skipped").Add(float64(skipped))
	m.preordersSwept.WithLabelValues("failed").Add(float64(failed))
}

// EventDispatched records one handler invocation on the event bus
func (m *FulfillmentMetrics) EventDispatched(eventType string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.eventsDispatched.WithLabelValues(eventType, status).Inc()
}

// Handler returns the /metrics handler
func (m *FulfillmentMetrics) Handler() http.Handler {
	return m.handler
}

// Registerer exposes the registry for additional collectors
func (m *FulfillmentMetrics) Registerer() prometheus.Registerer {
	return m.registry
}

// GinMiddleware records request counts and latency per route template
func (m *FulfillmentMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

var (
	_ apptrade.Metrics       = (*FulfillmentMetrics)(nil)
	_ event.DispatchObserver = (*FulfillmentMetrics)(nil)
)
