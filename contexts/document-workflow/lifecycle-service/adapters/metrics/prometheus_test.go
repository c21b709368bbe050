package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCountsTransitions(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	recorder := NewPrometheus(registry)

	recorder.TransitionAccepted("CONTRACT", "draft", "pending_review")
	recorder.TransitionAccepted("CONTRACT", "draft", "pending_review")
	recorder.TransitionRejected("CONTRACT", "illegal_transition")
	recorder.SequenceAllocated("ADM-PUR")
	recorder.AllocationFailed("")
	recorder.OutboxRelayed("document.created", "published")
	recorder.OutboxRelayed("document.created", "held")

	assert.InDelta(t, 2, testutil.ToFloat64(recorder.transitionsAccepted.WithLabelValues("CONTRACT", "draft", "pending_review")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(recorder.transitionsRejected.WithLabelValues("CONTRACT", "illegal_transition")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(recorder.sequencesAllocated.WithLabelValues("ADM-PUR")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(recorder.allocationFailures.WithLabelValues("unknown")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(recorder.outboxEvents.WithLabelValues("document.created", "held")), 0)
}

func TestPrometheusExposesOperationHistogram(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	recorder := NewPrometheus(registry)
	recorder.ObserveOperation("create", 20*time.Millisecond)

	count, err := testutil.GatherAndCount(registry, "document_lifecycle_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expected := `
# HELP document_sequence_allocations_total Sequence ids issued by document family
# TYPE document_sequence_allocations_total counter
document_sequence_allocations_total{family="CONTRACT"} 1
`
	recorder.SequenceAllocated("CONTRACT")
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "document_sequence_allocations_total"))
}
