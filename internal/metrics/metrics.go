// Package metrics exposes escrow activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sudo-init-do/mintaro/internal/escrow"
)

// Recorder counts escrow events and failures. It implements escrow.Observer
// and escrow.ErrorObserver.
type Recorder struct {
	registry *prometheus.Registry

	events   *prometheus.CounterVec
	failures *prometheus.CounterVec
	released *prometheus.CounterVec
}

var (
	_ escrow.Observer      = (*Recorder)(nil)
	_ escrow.ErrorObserver = (*Recorder)(nil)
)

// New creates a Recorder with its own registry, including Go runtime and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mintaro",
			Subsystem: "escrow",
			Name:      "events_total",
			Help:      "Escrow state changes by kind and backend.",
		}, []string{"kind", "backend"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mintaro",
			Subsystem: "escrow",
			Name:      "failures_total",
			Help:      "Failed escrow operations by operation and error code.",
		}, []string{"op", "code"}),
		released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mintaro",
			Subsystem: "escrow",
			Name:      "released_payments_total",
			Help:      "Released milestone payments by backend.",
		}, []string{"backend"}),
	}
	r.registry.MustRegister(
		r.events,
		r.failures,
		r.released,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Observe(_ context.Context, ev escrow.Event) {
	r.events.WithLabelValues(string(ev.Kind), ev.Backend).Inc()
	if ev.Kind == escrow.EventPaymentReleased {
		r.released.WithLabelValues(ev.Backend).Inc()
	}
}

func (r *Recorder) ObserveError(_ context.Context, op string, err error) {
	r.failures.WithLabelValues(op, string(escrow.CodeOf(err))).Inc()
}

// Registry returns the registry the recorder's collectors live in.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
