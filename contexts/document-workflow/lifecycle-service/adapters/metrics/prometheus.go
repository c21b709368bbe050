package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus records lifecycle counters and latencies on a registry.
type Prometheus struct {
	sequencesAllocated  *prometheus.CounterVec
	allocationFailures  *prometheus.CounterVec
	transitionsAccepted *prometheus.CounterVec
	transitionsRejected *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	outboxEvents        *prometheus.CounterVec
}

func NewPrometheus(registerer prometheus.Registerer) *Prometheus {
	factory := promauto.With(registerer)
	return &Prometheus{
		sequencesAllocated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "document_sequence_allocations_total",
			Help: "Sequence ids issued by document family",
		}, []string{"family"}),
		allocationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "document_sequence_allocation_failures_total",
			Help: "Failed sequence allocations by document family",
		}, []string{"family"}),
		transitionsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "document_transitions_total",
			Help: "Accepted status transitions by family, from_state and to_state",
		}, []string{"family", "from_state", "to_state"}),
		transitionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "document_transition_rejections_total",
			Help: "Rejected status transitions by family and reason",
		}, []string{"family", "reason"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "document_lifecycle_operation_duration_seconds",
			Help:    "Duration of lifecycle operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"operation"}),
		outboxEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "document_outbox_events_total",
			Help: "Outbox rows handled by the relay by event type and outcome",
		}, []string{"event_type", "outcome"}),
	}
}

func (p *Prometheus) SequenceAllocated(family string) {
	p.sequencesAllocated.WithLabelValues(sanitize(family)).Inc()
}

func (p *Prometheus) AllocationFailed(family string) {
	p.allocationFailures.WithLabelValues(sanitize(family)).Inc()
}

func (p *Prometheus) TransitionAccepted(family string, from string, to string) {
	p.transitionsAccepted.WithLabelValues(sanitize(family), sanitize(from), sanitize(to)).Inc()
}

func (p *Prometheus) TransitionRejected(family string, reason string) {
	p.transitionsRejected.WithLabelValues(sanitize(family), sanitize(reason)).Inc()
}

func (p *Prometheus) ObserveOperation(operation string, elapsed time.Duration) {
	p.operationDuration.WithLabelValues(sanitize(operation)).Observe(elapsed.Seconds())
}

func (p *Prometheus) OutboxRelayed(eventType string, outcome string) {
	p.outboxEvents.WithLabelValues(sanitize(eventType), sanitize(outcome)).Inc()
}

func sanitize(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
