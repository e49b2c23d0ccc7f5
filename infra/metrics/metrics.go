// Package metrics exposes Prometheus counters for the fund flows and the
// HTTP surface.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/coletivobank/coletivo/pkg/domain/events"
	"github.com/coletivobank/coletivo/pkg/eventbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coletivo"

// Metrics owns a registry so tests and multiple apps do not collide on the
// global one.
type Metrics struct {
	registry *prometheus.Registry

	Events             *prometheus.CounterVec
	ContributedAmount  *prometheus.CounterVec
	RequestsSubmitted  prometheus.Counter
	RequestsDecided    *prometheus.CounterVec
	RetributedAmount   *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, including the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Domain events observed on the bus by type.",
		}, []string{"type"}),
		ContributedAmount: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "funds",
			Name:      "contributed_minor_units_total",
			Help:      "Sum of recorded contributions in the currency's smallest unit.",
		}, []string{"currency"}),
		RequestsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capital_requests",
			Name:      "submitted_total",
			Help:      "Capital requests submitted for a vote.",
		}),
		RequestsDecided: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capital_requests",
			Name:      "decided_total",
			Help:      "Capital requests that left the pending state by outcome.",
		}, []string{"status"}),
		RetributedAmount: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "funds",
			Name:      "retributed_minor_units_total",
			Help:      "Sum of retributions distributed in the currency's smallest unit.",
		}, []string{"currency", "distribution"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry is the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Subscribe registers counters on every domain event type.
func (m *Metrics) Subscribe(bus eventbus.Bus) {
	bus.Register(events.ContributionRecorded{}.Type(), func(_ context.Context, e eventbus.Event) error {
		m.Events.WithLabelValues(e.Type()).Inc()
		if ev, ok := e.(*events.ContributionRecorded); ok {
			m.ContributedAmount.WithLabelValues(string(ev.Amount.Currency())).Add(float64(ev.Amount.Amount()))
		}
		return nil
	})
	bus.Register(events.CapitalRequestSubmitted{}.Type(), func(_ context.Context, e eventbus.Event) error {
		m.Events.WithLabelValues(e.Type()).Inc()
		m.RequestsSubmitted.Inc()
		return nil
	})
	bus.Register(events.CapitalRequestDecided{}.Type(), func(_ context.Context, e eventbus.Event) error {
		m.Events.WithLabelValues(e.Type()).Inc()
		if ev, ok := e.(*events.CapitalRequestDecided); ok {
			m.RequestsDecided.WithLabelValues(ev.Status).Inc()
		}
		return nil
	})
	bus.Register(events.RetributionDistributed{}.Type(), func(_ context.Context, e eventbus.Event) error {
		m.Events.WithLabelValues(e.Type()).Inc()
		if ev, ok := e.(*events.RetributionDistributed); ok {
			m.RetributedAmount.WithLabelValues(string(ev.Amount.Currency()), string(ev.Distribution)).Add(float64(ev.Amount.Amount()))
		}
		return nil
	})
	bus.Register(events.FundSettingChanged{}.Type(), func(_ context.Context, e eventbus.Event) error {
		m.Events.WithLabelValues(e.Type()).Inc()
		return nil
	})
}
