package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application: the HTTP surface
// plus counters for ledger outcomes.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	allocationsTotal    *prometheus.CounterVec
	allocationsRejected *prometheus.CounterVec
	stockEntriesTotal   *prometheus.CounterVec
	stockRejected       *prometheus.CounterVec
	billsTotal          prometheus.Counter
	billsRejected       *prometheus.CounterVec
	integrityViolations prometheus.Gauge
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fims_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fims_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fims_allocations_total",
		Help: "Dispatch allocations created, by rake.",
	}, []string{"rake"})
	allocationsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fims_allocations_rejected_total",
		Help: "Dispatch allocations refused, by reason.",
	}, []string{"reason"})
	stockEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fims_stock_entries_total",
		Help: "Warehouse stock entries recorded, by type.",
	}, []string{"type"})
	stockRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fims_stock_entries_rejected_total",
		Help: "Warehouse stock entries refused, by reason.",
	}, []string{"reason"})
	bills := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fims_bills_total",
		Help: "Bills generated.",
	})
	billsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fims_bills_rejected_total",
		Help: "Bills refused, by reason.",
	}, []string{"reason"})
	integrity := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fims_ledger_integrity_violations",
		Help: "Invariant violations found by the last integrity scan.",
	})
	registry.MustRegister(requests, duration, allocations, allocationsRejected,
		stockEntries, stockRejected, bills, billsRejected, integrity)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		allocationsTotal:    allocations,
		allocationsRejected: allocationsRejected,
		stockEntriesTotal:   stockEntries,
		stockRejected:       stockRejected,
		billsTotal:          bills,
		billsRejected:       billsRejected,
		integrityViolations: integrity,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// AllocationCreated counts a successful dispatch allocation.
func (m *Metrics) AllocationCreated(rakeCode string) {
	if m != nil {
		m.allocationsTotal.WithLabelValues(rakeCode).Inc()
	}
}

// AllocationRejected counts a refused dispatch allocation.
func (m *Metrics) AllocationRejected(reason string) {
	if m != nil {
		m.allocationsRejected.WithLabelValues(reason).Inc()
	}
}

// StockEntryRecorded counts a recorded stock entry.
func (m *Metrics) StockEntryRecorded(entryType string) {
	if m != nil {
		m.stockEntriesTotal.WithLabelValues(entryType).Inc()
	}
}

// StockEntryRejected counts a refused stock entry.
func (m *Metrics) StockEntryRejected(reason string) {
	if m != nil {
		m.stockRejected.WithLabelValues(reason).Inc()
	}
}

// BillCreated counts a generated bill.
func (m *Metrics) BillCreated() {
	if m != nil {
		m.billsTotal.Inc()
	}
}

// BillRejected counts a refused bill.
func (m *Metrics) BillRejected(reason string) {
	if m != nil {
		m.billsRejected.WithLabelValues(reason).Inc()
	}
}

// SetIntegrityViolations publishes the violation count from the latest scan.
func (m *Metrics) SetIntegrityViolations(count int) {
	if m != nil {
		m.integrityViolations.Set(float64(count))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
