package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	application "vihadmin/contexts/document-workflow/lifecycle-service/application"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/statemachine"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"

	"go.opentelemetry.io/otel/attribute"
)

type Allocation struct {
	Family     string
	Year       int
	Sequence   int64
	SequenceID string
}

// Allocator issues year-scoped sequence ids. The counter store is passed per call
// so that the increment joins the caller's transaction.
type Allocator struct {
	Registry *statemachine.Registry
	Metrics  ports.LifecycleMetrics
	Logger   *slog.Logger
}

func (a Allocator) Allocate(
	ctx context.Context,
	counters ports.SequenceCounterStore,
	family string,
	year int,
) (alloc Allocation, err error) {
	logger := application.ResolveLogger(a.Logger)
	metrics := application.ResolveMetrics(a.Metrics)
	family = strings.TrimSpace(family)

	ctx, span := application.StartSpan(ctx, "sequence.allocate",
		attribute.String("document.family", family),
		attribute.Int("document.year", year),
	)
	defer func() { application.EndSpan(span, err) }()

	graph, err := a.Registry.Graph(family)
	if err != nil {
		return Allocation{}, err
	}
	if !statemachine.ValidSequenceYear(year) {
		return Allocation{}, fmt.Errorf("%w: year %d out of range", domainerrors.ErrInvalidDocumentInput, year)
	}
	if counters == nil {
		return Allocation{}, &domainerrors.AllocationError{
			Family: family,
			Year:   year,
			Err:    fmt.Errorf("no counter store configured"),
		}
	}

	value, err := counters.IncrementSequence(ctx, graph.Family(), year)
	if err == nil && value < 1 {
		err = fmt.Errorf("counter returned %d", value)
	}
	if err == nil && value > statemachine.MaxSequence {
		err = domainerrors.ErrSequenceExhausted
	}
	if err != nil {
		metrics.AllocationFailed(graph.Family())
		logger.Error("sequence allocation failed",
			"event", "lifecycle_sequence_allocation_failed",
			"module", "document-workflow/lifecycle-service",
			"layer", "application",
			"family", graph.Family(),
			"year", year,
			"error", err.Error(),
		)
		return Allocation{}, &domainerrors.AllocationError{Family: graph.Family(), Year: year, Err: err}
	}

	metrics.SequenceAllocated(graph.Family())
	return Allocation{
		Family:     graph.Family(),
		Year:       year,
		Sequence:   value,
		SequenceID: statemachine.FormatSequenceID(graph.Prefix(), year, value),
	}, nil
}
