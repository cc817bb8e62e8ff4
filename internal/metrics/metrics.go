// Package metrics exposes Prometheus instrumentation for the sync core.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mutation outcomes.
const (
	OutcomeConfirmed  = "confirmed"
	OutcomeRolledBack = "rolled_back"
	OutcomeSuperseded = "superseded"
)

// Recorder owns a private registry so tests and multiple app instances never
// collide on the global one.
type Recorder struct {
	registry          *prometheus.Registry
	mutations         *prometheus.CounterVec
	mutationDuration  *prometheus.HistogramVec
	inflight          prometheus.Gauge
	rollbackConflicts *prometheus.CounterVec
	pushTicks         prometheus.Counter
	pushMessages      *prometheus.CounterVec
	storeChanges      *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quad",
			Name:      "mutations_total",
			Help:      "Settled optimistic mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		mutationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quad",
			Name:      "mutation_duration_seconds",
			Help:      "Time from optimistic apply to settlement.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 10},
		}, []string{"op"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quad",
			Name:      "mutations_inflight",
			Help:      "Optimistic mutations awaiting the backend.",
		}),
		rollbackConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quad",
			Name:      "rollback_conflicts_total",
			Help:      "Rollbacks that overwrote a value written by someone else during the remote call.",
		}, []string{"op"}),
		pushTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quad",
			Name:      "push_ticks_total",
			Help:      "Simulated push channel ticks.",
		}),
		pushMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quad",
			Name:      "push_messages_total",
			Help:      "Messages published on the push channel by type.",
		}, []string{"type"}),
		storeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quad",
			Name:      "store_changes_total",
			Help:      "Store mutations by entity kind and operation.",
		}, []string{"kind", "op"}),
	}
	r.registry.MustRegister(
		r.mutations, r.mutationDuration, r.inflight, r.rollbackConflicts,
		r.pushTicks, r.pushMessages, r.storeChanges,
		collectors.NewGoCollector(),
	)
	return r
}

// Registry returns the registry backing r.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) MutationStarted() {
	if r == nil {
		return
	}
	r.inflight.Inc()
}

func (r *Recorder) MutationSettled(op, outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.inflight.Dec()
	r.mutations.WithLabelValues(op, outcome).Inc()
	r.mutationDuration.WithLabelValues(op).Observe(took.Seconds())
}

func (r *Recorder) RollbackConflict(op string) {
	if r == nil {
		return
	}
	r.rollbackConflicts.WithLabelValues(op).Inc()
}

func (r *Recorder) PushTick() {
	if r == nil {
		return
	}
	r.pushTicks.Inc()
}

func (r *Recorder) PushMessage(msgType string) {
	if r == nil {
		return
	}
	r.pushMessages.WithLabelValues(msgType).Inc()
}

func (r *Recorder) StoreChange(kind, op string) {
	if r == nil {
		return
	}
	if kind == "" {
		kind = "sync"
	}
	r.storeChanges.WithLabelValues(kind, op).Inc()
}
