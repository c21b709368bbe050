package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "vihadmin/contexts/document-workflow/lifecycle-service/application"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"
)

type RecordInput struct {
	Family     string
	DocumentID string
	SequenceID string
	FromState  string
	ToState    string
	Actor      string
	Comment    string
	OccurredAt time.Time
}

// Trail appends transition log entries. It never edits or removes an entry.
type Trail struct {
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// Record appends one entry through log, which is expected to be bound to the
// same transaction as the status update.
func (t Trail) Record(ctx context.Context, log ports.TransitionLog, in RecordInput) (entities.TransitionLogEntry, error) {
	logger := application.ResolveLogger(t.Logger)
	actor := strings.TrimSpace(in.Actor)
	if actor == "" {
		return entities.TransitionLogEntry{}, domainerrors.ErrActorRequired
	}
	if strings.TrimSpace(in.DocumentID) == "" {
		return entities.TransitionLogEntry{}, domainerrors.ErrInvalidDocumentInput
	}

	entryID, err := t.IDGen.NewID(ctx)
	if err != nil {
		return entities.TransitionLogEntry{}, err
	}
	occurredAt := in.OccurredAt.UTC()
	if in.OccurredAt.IsZero() {
		occurredAt = t.Clock.Now().UTC()
	}

	entry := entities.TransitionLogEntry{
		EntryID:        entryID,
		DocumentFamily: strings.TrimSpace(in.Family),
		DocumentID:     strings.TrimSpace(in.DocumentID),
		SequenceID:     strings.TrimSpace(in.SequenceID),
		FromState:      strings.TrimSpace(in.FromState),
		ToState:        strings.TrimSpace(in.ToState),
		Actor:          actor,
		Comment:        strings.TrimSpace(in.Comment),
		CreatedAt:      occurredAt,
	}
	if err := log.AppendTransition(ctx, entry); err != nil {
		return entities.TransitionLogEntry{}, err
	}

	logger.Debug("transition recorded",
		"event", "lifecycle_transition_recorded",
		"module", "document-workflow/lifecycle-service",
		"layer", "application",
		"entry_id", entry.EntryID,
		"document_id", entry.DocumentID,
		"from_status", entry.FromState,
		"to_status", entry.ToState,
	)
	return entry, nil
}

// History lists the entries of a document, oldest first.
func (t Trail) History(ctx context.Context, log ports.TransitionLog, documentID string) ([]entities.TransitionLogEntry, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, domainerrors.ErrInvalidDocumentInput
	}
	return log.ListTransitions(ctx, documentID)
}
