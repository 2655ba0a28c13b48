package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart facade outcomes and commerce backend latency.
type CartMetrics struct {
	operations *prometheus.CounterVec
	stale      *prometheus.CounterVec
	backend    *prometheus.HistogramVec
	quotes     *prometheus.CounterVec
}

// NewCartMetrics registers the storefront metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_operations_total",
		Help: "Cart facade operations by outcome.",
	}, []string{"operation", "outcome"})
	stale := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_stale_total",
		Help: "Cart mutations superseded by a newer request for the same session.",
	}, []string{"operation"})
	backend := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_backend_call_duration_seconds",
		Help:    "Duration of commerce backend GraphQL calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_price_quotes_total",
		Help: "Price quotes served, split by whether the quantity was clamped.",
	}, []string{"clamped"})
	reg.MustRegister(operations, stale, backend, quotes)
	return &CartMetrics{
		operations: operations,
		stale:      stale,
		backend:    backend,
		quotes:     quotes,
	}
}

// ObserveCartOperation counts one facade call.
func (m *CartMetrics) ObserveCartOperation(operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (m *CartMetrics) IncStale(operation string) {
	if m == nil || m.stale == nil {
		return
	}
	m.stale.WithLabelValues(normalizeLabel(operation)).Inc()
}

// ObserveBackendCall records one GraphQL round trip.
func (m *CartMetrics) ObserveBackendCall(operation, outcome string, elapsed time.Duration) {
	if m == nil || m.backend == nil {
		return
	}
	m.backend.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Observe(elapsed.Seconds())
}

func (m *CartMetrics) IncQuote(clamped bool) {
	if m == nil || m.quotes == nil {
		return
	}
	m.quotes.WithLabelValues(strconv.FormatBool(clamped)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
