// Package metrics provides observability for the ledger module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks registry creation, transition outcomes and critical path
// durations. A nil *Metrics is valid and records nothing, so unit tests can
// wire services without touching the global prometheus registry.
type Metrics struct {
	RegistriesCreated  prometheus.Counter
	Transitions        *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
	EventsPublished    prometheus.Counter
	PublishFailures    prometheus.Counter
	CacheLookups       *prometheus.CounterVec
}

// New creates a Metrics instance with all ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		RegistriesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paylog_registries_created_total",
			Help: "Total number of attestation registries created",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paylog_transitions_total",
			Help: "Milestone transition attempts by operation and outcome",
		}, []string{"operation", "outcome"}),
		TransitionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paylog_transition_duration_seconds",
			Help:    "Duration of milestone transitions (validation through commit)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paylog_events_published_total",
			Help: "Ledger events delivered to the external sink",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paylog_event_publish_failures_total",
			Help: "Failed attempts to deliver ledger events to the external sink",
		}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paylog_view_cache_lookups_total",
			Help: "Milestone view cache lookups by result",
		}, []string{"result"}),
	}
}

// IncrementRegistriesCreated records a successful registry creation.
func (m *Metrics) IncrementRegistriesCreated() {
	if m == nil {
		return
	}
	m.RegistriesCreated.Inc()
}

// ObserveTransition records one transition attempt and its duration.
func (m *Metrics) ObserveTransition(operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(operation, outcome).Inc()
	m.TransitionDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// IncrementEventsPublished records a successful sink delivery.
func (m *Metrics) IncrementEventsPublished() {
	if m == nil {
		return
	}
	m.EventsPublished.Inc()
}

// IncrementPublishFailures records a failed sink delivery.
func (m *Metrics) IncrementPublishFailures() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

// ObserveCacheLookup records a view cache hit or miss.
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
