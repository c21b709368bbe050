package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "vihadmin/contexts/document-workflow/lifecycle-service/application"
	"vihadmin/contexts/document-workflow/lifecycle-service/application/audit"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/statemachine"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"
	contractsv1 "vihadmin/contracts/gen/events/v1"

	"go.opentelemetry.io/otel/attribute"
)

// TransitionDocumentCommand moves Document, as the caller last read it, to
// TargetState. Document.Status and Document.Version form the optimistic lock.
type TransitionDocumentCommand struct {
	Document    entities.Document
	TargetState string
	Actor       string
	Comment     string
}

// TransitionByIDCommand is the entry point for callers that only hold an id.
// ExpectedVersion, when positive, must match the stored version.
type TransitionByIDCommand struct {
	DocumentID      string
	ExpectedVersion int64
	TargetState     string
	Actor           string
	Comment         string
}

type TransitionDocumentResult struct {
	Document entities.Document
	Entry    entities.TransitionLogEntry
}

type TransitionDocumentUseCase struct {
	UnitOfWork  ports.UnitOfWork
	Documents   ports.DocumentRepository
	Validator   statemachine.TransitionValidator
	Audit       audit.Trail
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Metrics     ports.LifecycleMetrics
	Logger      *slog.Logger
}

func (uc TransitionDocumentUseCase) Execute(ctx context.Context, cmd TransitionDocumentCommand) (result TransitionDocumentResult, err error) {
	logger := application.ResolveLogger(uc.Logger)
	metrics := application.ResolveMetrics(uc.Metrics)
	started := time.Now()
	defer func() { metrics.ObserveOperation("transition", time.Since(started)) }()

	current := cmd.Document
	target := strings.TrimSpace(cmd.TargetState)
	actor := strings.TrimSpace(cmd.Actor)

	ctx, span := application.StartSpan(ctx, "lifecycle.transition",
		attribute.String("document.id", current.DocumentID),
		attribute.String("document.family", current.Family),
		attribute.String("document.from_state", current.Status),
		attribute.String("document.to_state", target),
	)
	defer func() { application.EndSpan(span, err) }()

	if strings.TrimSpace(current.DocumentID) == "" {
		return TransitionDocumentResult{}, domainerrors.ErrInvalidDocumentInput
	}
	if actor == "" {
		return TransitionDocumentResult{}, domainerrors.ErrActorRequired
	}
	if err := uc.Validator.Validate(current.Family, current.Status, target); err != nil {
		metrics.TransitionRejected(current.Family, "illegal_transition")
		logger.Info("document transition rejected",
			"event", "lifecycle_transition_rejected",
			"module", "document-workflow/lifecycle-service",
			"layer", "application",
			"document_id", current.DocumentID,
			"family", current.Family,
			"from_status", current.Status,
			"to_status", target,
			"error", err.Error(),
		)
		return TransitionDocumentResult{}, err
	}

	now := uc.Clock.Now().UTC()
	eventID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return TransitionDocumentResult{}, err
	}

	var updated entities.Document
	var entry entities.TransitionLogEntry
	err = uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, tx ports.Tx) error {
		// The caller's copy only selects the row; the gate runs against what is stored.
		stored, err := tx.GetDocument(ctx, current.DocumentID)
		if err != nil {
			return err
		}
		if stored.Family != current.Family || stored.Status != current.Status || stored.Version != current.Version {
			return &domainerrors.ConcurrentModificationError{
				DocumentID:      current.DocumentID,
				ExpectedStatus:  current.Status,
				ExpectedVersion: current.Version,
			}
		}
		if err := uc.Validator.Validate(stored.Family, stored.Status, target); err != nil {
			return err
		}

		recorded, err := uc.Audit.Record(ctx, tx, audit.RecordInput{
			Family:     stored.Family,
			DocumentID: stored.DocumentID,
			SequenceID: stored.SequenceID,
			FromState:  stored.Status,
			ToState:    target,
			Actor:      actor,
			Comment:    cmd.Comment,
			OccurredAt: now,
		})
		if err != nil {
			return err
		}

		swapped, err := tx.SwapDocumentStatus(ctx, ports.StatusSwap{
			DocumentID:      stored.DocumentID,
			Family:          stored.Family,
			FromStatus:      stored.Status,
			ToStatus:        target,
			ExpectedVersion: stored.Version,
			UpdatedAt:       now,
		})
		if err != nil {
			if errors.Is(err, domainerrors.ErrConcurrentModification) {
				return &domainerrors.ConcurrentModificationError{
					DocumentID:      current.DocumentID,
					ExpectedStatus:  current.Status,
					ExpectedVersion: current.Version,
				}
			}
			return err
		}

		envelope, err := newDocumentEnvelope(
			eventID,
			contractsv1.EventTypeDocumentTransitioned,
			swapped.DocumentID,
			now,
			contractsv1.DocumentTransitionedData{
				DocumentID: swapped.DocumentID,
				SequenceID: swapped.SequenceID,
				Family:     swapped.Family,
				FromState:  recorded.FromState,
				ToState:    recorded.ToState,
				Actor:      recorded.Actor,
				Comment:    recorded.Comment,
				Version:    swapped.Version,
				OccurredAt: now,
			},
		)
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, envelope); err != nil {
			return err
		}
		updated = swapped
		entry = recorded
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrConcurrentModification):
			metrics.TransitionRejected(current.Family, "concurrent_modification")
		case errors.Is(err, domainerrors.ErrIllegalTransition):
			metrics.TransitionRejected(current.Family, "illegal_transition")
		}
		logger.Warn("document transition failed",
			"event", "lifecycle_transition_failed",
			"module", "document-workflow/lifecycle-service",
			"layer", "application",
			"document_id", current.DocumentID,
			"family", current.Family,
			"from_status", current.Status,
			"to_status", target,
			"error", err.Error(),
		)
		return TransitionDocumentResult{}, err
	}

	metrics.TransitionAccepted(updated.Family, current.Status, updated.Status)
	logger.Info("document state changed",
		"event", "lifecycle_document_state_changed",
		"module", "document-workflow/lifecycle-service",
		"layer", "application",
		"document_id", updated.DocumentID,
		"sequence_id", updated.SequenceID,
		"from_status", current.Status,
		"to_status", updated.Status,
		"version", updated.Version,
	)
	return TransitionDocumentResult{Document: updated, Entry: entry}, nil
}

func (uc TransitionDocumentUseCase) ExecuteByID(ctx context.Context, cmd TransitionByIDCommand) (TransitionDocumentResult, error) {
	document, err := uc.Documents.GetDocument(ctx, strings.TrimSpace(cmd.DocumentID))
	if err != nil {
		return TransitionDocumentResult{}, err
	}
	if cmd.ExpectedVersion > 0 && cmd.ExpectedVersion != document.Version {
		application.ResolveMetrics(uc.Metrics).TransitionRejected(document.Family, "stale_version")
		return TransitionDocumentResult{}, &domainerrors.ConcurrentModificationError{
			DocumentID:      document.DocumentID,
			ExpectedStatus:  document.Status,
			ExpectedVersion: cmd.ExpectedVersion,
		}
	}
	return uc.Execute(ctx, TransitionDocumentCommand{
		Document:    document,
		TargetState: cmd.TargetState,
		Actor:       cmd.Actor,
		Comment:     cmd.Comment,
	})
}
