package commands

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "vihadmin/contexts/document-workflow/lifecycle-service/application"
	"vihadmin/contexts/document-workflow/lifecycle-service/application/sequence"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/statemachine"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"
	contractsv1 "vihadmin/contracts/gen/events/v1"

	"go.opentelemetry.io/otel/attribute"
)

type CreateDocumentCommand struct {
	Family         string
	Year           int
	Payload        json.RawMessage
	CreatedBy      string
	IdempotencyKey string
}

type CreateDocumentResult struct {
	Document entities.Document
	Replayed bool
}

// CreateDocumentUseCase allocates a sequence id and persists a document in its
// family's initial state. Allocation, insert, idempotency record and outbox event
// commit together or not at all.
type CreateDocumentUseCase struct {
	UnitOfWork     ports.UnitOfWork
	Idempotency    ports.IdempotencyStore
	Counters       ports.SequenceCounterStore
	Registry       *statemachine.Registry
	Allocator      sequence.Allocator
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Metrics        ports.LifecycleMetrics
	Logger         *slog.Logger
}

type createDocumentReplayPayload struct {
	DocumentID string          `json:"document_id"`
	SequenceID string          `json:"sequence_id"`
	Family     string          `json:"family"`
	Year       int             `json:"year"`
	Sequence   int64           `json:"sequence"`
	Status     string          `json:"status"`
	Version    int64           `json:"version"`
	Payload    json.RawMessage `json:"payload"`
	CreatedBy  string          `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (uc CreateDocumentUseCase) Execute(ctx context.Context, cmd CreateDocumentCommand) (result CreateDocumentResult, err error) {
	logger := application.ResolveLogger(uc.Logger)
	metrics := application.ResolveMetrics(uc.Metrics)
	started := time.Now()
	defer func() { metrics.ObserveOperation("create", time.Since(started)) }()

	family := strings.TrimSpace(cmd.Family)
	ctx, span := application.StartSpan(ctx, "lifecycle.create",
		attribute.String("document.family", family),
		attribute.Int("document.year", cmd.Year),
	)
	defer func() { application.EndSpan(span, err) }()

	graph, err := uc.Registry.Graph(family)
	if err != nil {
		return CreateDocumentResult{}, err
	}
	if !statemachine.ValidSequenceYear(cmd.Year) {
		return CreateDocumentResult{}, fmt.Errorf("%w: year %d out of range", domainerrors.ErrInvalidDocumentInput, cmd.Year)
	}
	payload := bytes.TrimSpace(cmd.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if !json.Valid(payload) {
		return CreateDocumentResult{}, fmt.Errorf("%w: payload is not valid json", domainerrors.ErrInvalidDocumentInput)
	}

	now := uc.Clock.Now().UTC()
	idempotencyKey := strings.TrimSpace(cmd.IdempotencyKey)
	requestHash := hashCreateDocumentCommand(cmd, payload)
	if idempotencyKey != "" && uc.Idempotency != nil {
		record, found, err := uc.Idempotency.GetRecord(ctx, idempotencyKey, now)
		if err != nil {
			return CreateDocumentResult{}, err
		}
		if found {
			if record.RequestHash != requestHash {
				return CreateDocumentResult{}, domainerrors.ErrIdempotencyKeyConflict
			}
			var replay createDocumentReplayPayload
			if err := json.Unmarshal(record.ResponsePayload, &replay); err != nil {
				return CreateDocumentResult{}, err
			}
			return CreateDocumentResult{Document: replay.toEntity(), Replayed: true}, nil
		}
	}

	documentID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return CreateDocumentResult{}, err
	}
	eventID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return CreateDocumentResult{}, err
	}

	var document entities.Document
	err = uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, tx ports.Tx) error {
		counters := uc.Counters
		if counters == nil {
			counters = tx
		}
		allocation, err := uc.Allocator.Allocate(ctx, counters, graph.Family(), cmd.Year)
		if err != nil {
			return err
		}

		document = entities.Document{
			DocumentID: documentID,
			SequenceID: allocation.SequenceID,
			Family:     graph.Family(),
			Year:       allocation.Year,
			Sequence:   allocation.Sequence,
			Status:     graph.InitialState(),
			Version:    1,
			Payload:    append(json.RawMessage(nil), payload...),
			CreatedBy:  strings.TrimSpace(cmd.CreatedBy),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.CreateDocument(ctx, document); err != nil {
			if errors.Is(err, domainerrors.ErrSequenceIDCollision) {
				metrics.AllocationFailed(graph.Family())
				return &domainerrors.AllocationError{Family: graph.Family(), Year: cmd.Year, Err: err}
			}
			return err
		}

		if idempotencyKey != "" {
			replay, err := json.Marshal(replayPayloadFromEntity(document))
			if err != nil {
				return err
			}
			ttl := uc.IdempotencyTTL
			if ttl <= 0 {
				ttl = 7 * 24 * time.Hour
			}
			if err := tx.PutRecord(ctx, ports.IdempotencyRecord{
				Key:             idempotencyKey,
				RequestHash:     requestHash,
				ResponsePayload: replay,
				ExpiresAt:       now.Add(ttl),
			}); err != nil {
				return err
			}
		}

		envelope, err := newDocumentEnvelope(
			eventID,
			contractsv1.EventTypeDocumentCreated,
			document.DocumentID,
			now,
			contractsv1.DocumentCreatedData{
				DocumentID: document.DocumentID,
				SequenceID: document.SequenceID,
				Family:     document.Family,
				Status:     document.Status,
				CreatedBy:  document.CreatedBy,
				CreatedAt:  document.CreatedAt,
			},
		)
		if err != nil {
			return err
		}
		return tx.AppendOutbox(ctx, envelope)
	})
	if errors.Is(err, domainerrors.ErrIdempotencyKeyReplayed) {
		// A request with the same key committed first; answer with its document.
		return uc.replayCommitted(ctx, idempotencyKey, requestHash, now)
	}
	if err != nil {
		logger.Warn("document create failed",
			"event", "lifecycle_document_create_failed",
			"module", "document-workflow/lifecycle-service",
			"layer", "application",
			"family", graph.Family(),
			"year", cmd.Year,
			"error", err.Error(),
		)
		return CreateDocumentResult{}, err
	}

	logger.Info("document created",
		"event", "lifecycle_document_created",
		"module", "document-workflow/lifecycle-service",
		"layer", "application",
		"document_id", document.DocumentID,
		"sequence_id", document.SequenceID,
		"family", document.Family,
		"status", document.Status,
	)
	return CreateDocumentResult{Document: document}, nil
}

func (uc CreateDocumentUseCase) replayCommitted(ctx context.Context, key string, requestHash string, now time.Time) (CreateDocumentResult, error) {
	if uc.Idempotency == nil {
		return CreateDocumentResult{}, domainerrors.ErrIdempotencyKeyConflict
	}
	record, found, err := uc.Idempotency.GetRecord(ctx, key, now)
	if err != nil {
		return CreateDocumentResult{}, err
	}
	if !found {
		return CreateDocumentResult{}, domainerrors.ErrIdempotencyKeyConflict
	}
	return replayRecord(record, requestHash)
}

func replayRecord(record ports.IdempotencyRecord, requestHash string) (CreateDocumentResult, error) {
	if record.RequestHash != requestHash {
		return CreateDocumentResult{}, domainerrors.ErrIdempotencyKeyConflict
	}
	var replay createDocumentReplayPayload
	if err := json.Unmarshal(record.ResponsePayload, &replay); err != nil {
		return CreateDocumentResult{}, err
	}
	return CreateDocumentResult{Document: replay.toEntity(), Replayed: true}, nil
}

func hashCreateDocumentCommand(cmd CreateDocumentCommand, payload []byte) string {
	raw, _ := json.Marshal(struct {
		Family    string          `json:"family"`
		Year      int             `json:"year"`
		CreatedBy string          `json:"created_by"`
		Payload   json.RawMessage `json:"payload"`
	}{
		Family:    strings.TrimSpace(cmd.Family),
		Year:      cmd.Year,
		CreatedBy: strings.TrimSpace(cmd.CreatedBy),
		Payload:   payload,
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func replayPayloadFromEntity(document entities.Document) createDocumentReplayPayload {
	return createDocumentReplayPayload{
		DocumentID: document.DocumentID,
		SequenceID: document.SequenceID,
		Family:     document.Family,
		Year:       document.Year,
		Sequence:   document.Sequence,
		Status:     document.Status,
		Version:    document.Version,
		Payload:    document.Payload,
		CreatedBy:  document.CreatedBy,
		CreatedAt:  document.CreatedAt,
		UpdatedAt:  document.UpdatedAt,
	}
}

func (p createDocumentReplayPayload) toEntity() entities.Document {
	return entities.Document{
		DocumentID: p.DocumentID,
		SequenceID: p.SequenceID,
		Family:     p.Family,
		Year:       p.Year,
		Sequence:   p.Sequence,
		Status:     p.Status,
		Version:    p.Version,
		Payload:    append(json.RawMessage(nil), p.Payload...),
		CreatedBy:  p.CreatedBy,
		CreatedAt:  p.CreatedAt.UTC(),
		UpdatedAt:  p.UpdatedAt.UTC(),
	}
}
