package observability

import (
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the storefront API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	ordersCreated   prometheus.Counter
	payments        *prometheus.CounterVec
	cartOps         *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "naijastore_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "naijastore_external_errors_total",
				Help: "Total errors from upstream services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "naijastore_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "naijastore_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		ordersCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "naijastore_orders_created_total",
				Help: "Total orders placed.",
			},
		),
		payments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "naijastore_payments_total",
				Help: "Payment verifications by outcome.",
			},
			[]string{"outcome"},
		),
		cartOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "naijastore_cart_operations_total",
				Help: "Cart mutations by operation.",
			},
			[]string{"op"},
		),
	}
}

// RecordDuration records the duration of an operation.
func (m *Metrics) RecordDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrOrderCreated counts a placed order.
func (m *Metrics) IncrOrderCreated() {
	m.ordersCreated.Inc()
}

// IncrPayment counts a payment verification outcome ("successful", "failed").
func (m *Metrics) IncrPayment(outcome string) {
	m.payments.WithLabelValues(outcome).Inc()
}

// IncrCartOp counts a cart mutation ("add", "update", "remove", "clear", "merge").
func (m *Metrics) IncrCartOp(op string) {
	m.cartOps.WithLabelValues(op).Inc()
}

// Snapshot returns the process counters for GET /api/admin/metrics.
func (m *Metrics) Snapshot() *domain.RuntimeMetrics {
	ok := counterValue(m.payments.WithLabelValues("successful"))
	failed := counterValue(m.payments.WithLabelValues("failed"))
	hits := sumCounterVec(m.cacheHits)
	misses := sumCounterVec(m.cacheMisses)

	snap := &domain.RuntimeMetrics{
		OrdersCreated:  int64(counterValue(m.ordersCreated)),
		PaymentsOK:     int64(ok),
		PaymentsFailed: int64(failed),
		ExternalErrors: int64(sumCounterVec(m.externalErrors)),
	}
	if hits+misses > 0 {
		snap.CacheHitRate = hits / (hits + misses)
	}
	if ok+failed > 0 {
		snap.PaymentFailRate = failed / (ok + failed)
	}
	return snap
}

// counterValue extracts the current value of a counter.
func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds up every label combination of a CounterVec.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := 0.0
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}
