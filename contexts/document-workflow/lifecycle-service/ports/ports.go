package ports

import (
	"context"
	"time"

	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	contractsv1 "vihadmin/contracts/gen/events/v1"
)

type DocumentFilter struct {
	Family string
	Status string
	Year   int
	Limit  int
}

// SequenceCounterStore increments the (family, year) counter and returns the new
// value in one atomic step.
type SequenceCounterStore interface {
	IncrementSequence(ctx context.Context, family string, year int) (int64, error)
}

type DocumentRepository interface {
	CreateDocument(ctx context.Context, document entities.Document) error
	GetDocument(ctx context.Context, documentID string) (entities.Document, error)
	GetDocumentBySequenceID(ctx context.Context, sequenceID string) (entities.Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]entities.Document, error)
}

// StatusSwap is a compare-and-swap of a document status guarded by the family,
// status and version the caller observed.
type StatusSwap struct {
	DocumentID      string
	Family          string
	FromStatus      string
	ToStatus        string
	ExpectedVersion int64
	UpdatedAt       time.Time
}

// DocumentStatusWriter returns ErrConcurrentModification when the guard does not
// match and ErrDocumentNotFound when the document does not exist.
type DocumentStatusWriter interface {
	SwapDocumentStatus(ctx context.Context, swap StatusSwap) (entities.Document, error)
}

type TransitionLog interface {
	AppendTransition(ctx context.Context, entry entities.TransitionLogEntry) error
	ListTransitions(ctx context.Context, documentID string) ([]entities.TransitionLogEntry, error)
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

// PutRecord returns ErrIdempotencyKeyConflict when the key holds a different
// request and ErrIdempotencyKeyReplayed when it holds the same request with
// another response.
type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// Tx is the set of writers that must commit or roll back together.
type Tx interface {
	SequenceCounterStore
	DocumentRepository
	DocumentStatusWriter
	TransitionLog
	IdempotencyStore
	OutboxWriter
}

// UnitOfWork runs fn inside one transaction. A non-nil error from fn rolls back
// every write made through tx.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type LifecycleMetrics interface {
	SequenceAllocated(family string)
	AllocationFailed(family string)
	TransitionAccepted(family string, from string, to string)
	TransitionRejected(family string, reason string)
	ObserveOperation(operation string, elapsed time.Duration)
	OutboxRelayed(eventType string, outcome string)
}
