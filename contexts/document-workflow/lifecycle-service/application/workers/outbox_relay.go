package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "vihadmin/contexts/document-workflow/lifecycle-service/application"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"
)

// OutboxRelay drains the lifecycle outbox onto the event bus. Events of one
// document share a partition key and must reach the bus in the order they were
// written; a failed row holds back the rest of its document until the next
// cycle while other documents keep flowing.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Metrics   ports.LifecycleMetrics
	Logger    *slog.Logger
}

// RelayReport summarises one cycle.
type RelayReport struct {
	Published int
	// Held counts rows skipped because an earlier row of the same document failed.
	Held   int
	Failed []string
}

const (
	relayOutcomePublished = "published"
	relayOutcomeHeld      = "held"
	relayOutcomeFailed    = "failed"
)

// RunOnce relays one batch. The error joins every row failure; rows that were
// published are marked even when the error is non-nil.
func (r OutboxRelay) RunOnce(ctx context.Context) (RelayReport, error) {
	logger := application.ResolveLogger(r.Logger)
	metrics := application.ResolveMetrics(r.Metrics)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("lifecycle outbox list failed",
			"event", "lifecycle_outbox_list_failed",
			"module", "document-workflow/lifecycle-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return RelayReport{}, err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	var (
		report   RelayReport
		failures []error
	)
	held := make(map[string]bool)
	for _, row := range pending {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		key := row.PartitionKey
		if key != "" && held[key] {
			report.Held++
			metrics.OutboxRelayed(row.EventType, relayOutcomeHeld)
			continue
		}

		if err := r.relay(ctx, logger, row, now); err != nil {
			if key != "" {
				held[key] = true
			}
			report.Failed = append(report.Failed, row.OutboxID)
			failures = append(failures, fmt.Errorf("outbox %s: %w", row.OutboxID, err))
			metrics.OutboxRelayed(row.EventType, relayOutcomeFailed)
			continue
		}
		report.Published++
		metrics.OutboxRelayed(row.EventType, relayOutcomePublished)
	}

	if report.Published > 0 || len(report.Failed) > 0 {
		logger.Info("lifecycle outbox relay cycle completed",
			"event", "lifecycle_outbox_relay_completed",
			"module", "document-workflow/lifecycle-service",
			"layer", "worker",
			"published_count", report.Published,
			"held_count", report.Held,
			"failed_count", len(report.Failed),
		)
	}
	return report, errors.Join(failures...)
}

func (r OutboxRelay) relay(ctx context.Context, logger *slog.Logger, row ports.OutboxMessage, now time.Time) error {
	var event ports.EventEnvelope
	if err := json.Unmarshal(row.Payload, &event); err != nil {
		logger.Error("lifecycle outbox decode failed",
			"event", "lifecycle_outbox_decode_failed",
			"module", "document-workflow/lifecycle-service",
			"layer", "worker",
			"outbox_id", row.OutboxID,
			"partition_key", row.PartitionKey,
			"error", err.Error(),
		)
		return err
	}

	topic := event.EventType
	if topic == "" {
		topic = row.EventType
	}
	if err := r.Publisher.Publish(ctx, topic, event); err != nil {
		logger.Error("lifecycle outbox publish failed",
			"event", "lifecycle_outbox_publish_failed",
			"module", "document-workflow/lifecycle-service",
			"layer", "worker",
			"outbox_id", row.OutboxID,
			"event_id", event.EventID,
			"document_id", event.PartitionKey,
			"topic", topic,
			"error", err.Error(),
		)
		return err
	}

	// Published but unmarked rows go out again next cycle; consumers dedupe on event id.
	if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
		logger.Error("lifecycle outbox mark published failed",
			"event", "lifecycle_outbox_mark_published_failed",
			"module", "document-workflow/lifecycle-service",
			"layer", "worker",
			"outbox_id", row.OutboxID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}
