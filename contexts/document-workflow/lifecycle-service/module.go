package lifecycleservice

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"vihadmin/contexts/document-workflow/lifecycle-service/adapters/catalog"
	httpadapter "vihadmin/contexts/document-workflow/lifecycle-service/adapters/http"
	"vihadmin/contexts/document-workflow/lifecycle-service/adapters/memory"
	"vihadmin/contexts/document-workflow/lifecycle-service/application/audit"
	"vihadmin/contexts/document-workflow/lifecycle-service/application/commands"
	"vihadmin/contexts/document-workflow/lifecycle-service/application/queries"
	"vihadmin/contexts/document-workflow/lifecycle-service/application/sequence"
	"vihadmin/contexts/document-workflow/lifecycle-service/application/workers"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/statemachine"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"
)

type Module struct {
	Handler  httpadapter.Handler
	Registry *statemachine.Registry
	Outbox   ports.OutboxRepository
	Clock    ports.Clock
	Metrics  ports.LifecycleMetrics
	Logger   *slog.Logger
}

// Dependencies wires the module to storage. Store must implement every port;
// Counters, when set, replaces the transactional counter with an external one.
type Dependencies struct {
	Store          Store
	Counters       ports.SequenceCounterStore
	Registry       *statemachine.Registry
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Metrics        ports.LifecycleMetrics
	Logger         *slog.Logger
}

// Store is the full persistence surface the module needs.
type Store interface {
	ports.UnitOfWork
	ports.DocumentRepository
	ports.TransitionLog
	ports.IdempotencyStore
	ports.OutboxRepository
}

func NewModule(deps Dependencies) Module {
	allocator := sequence.Allocator{
		Registry: deps.Registry,
		Metrics:  deps.Metrics,
		Logger:   deps.Logger,
	}
	trail := audit.Trail{
		Clock:  deps.Clock,
		IDGen:  deps.IDGenerator,
		Logger: deps.Logger,
	}

	createDocument := commands.CreateDocumentUseCase{
		UnitOfWork:     deps.Store,
		Idempotency:    deps.Store,
		Counters:       deps.Counters,
		Registry:       deps.Registry,
		Allocator:      allocator,
		Clock:          deps.Clock,
		IDGenerator:    deps.IDGenerator,
		IdempotencyTTL: deps.IdempotencyTTL,
		Metrics:        deps.Metrics,
		Logger:         deps.Logger,
	}
	transitionDocument := commands.TransitionDocumentUseCase{
		UnitOfWork:  deps.Store,
		Documents:   deps.Store,
		Validator:   statemachine.TransitionValidator{Registry: deps.Registry},
		Audit:       trail,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Metrics:     deps.Metrics,
		Logger:      deps.Logger,
	}

	getDocument := queries.GetDocumentUseCase{
		Documents: deps.Store,
		Registry:  deps.Registry,
		Logger:    deps.Logger,
	}
	listDocuments := queries.ListDocumentsUseCase{
		Documents: deps.Store,
		Registry:  deps.Registry,
		Logger:    deps.Logger,
	}
	listTransitions := queries.ListTransitionsUseCase{
		Documents: deps.Store,
		Log:       deps.Store,
		Audit:     trail,
	}

	return Module{
		Handler: httpadapter.Handler{
			CreateDocument:     createDocument,
			TransitionDocument: transitionDocument,
			GetDocument:        getDocument,
			ListDocuments:      listDocuments,
			ListTransitions:    listTransitions,
			ListFamilies:       queries.ListFamiliesUseCase{Registry: deps.Registry},
			DescribeFamily:     queries.DescribeFamilyUseCase{Registry: deps.Registry},
			Logger:             deps.Logger,
		},
		Registry: deps.Registry,
		Outbox:   deps.Store,
		Clock:    deps.Clock,
		Metrics:  deps.Metrics,
		Logger:   deps.Logger,
	}
}

// NewInMemoryModule builds the module on the process-local store with the
// embedded family catalog.
func NewInMemoryModule(seed []entities.Document, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	return NewModule(Dependencies{
		Store:          store,
		Registry:       catalog.MustDefaultRegistry(),
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
}

// Create issues the next sequence id for family and year and stores the
// document in the family's initial state.
func (m Module) Create(ctx context.Context, family string, year int, payload json.RawMessage) (entities.Document, error) {
	result, err := m.Handler.CreateDocument.Execute(ctx, commands.CreateDocumentCommand{
		Family:  family,
		Year:    year,
		Payload: payload,
	})
	if err != nil {
		return entities.Document{}, err
	}
	return result.Document, nil
}

// Transition moves document to target. document must be the caller's latest
// read; a concurrent change since then fails with ConcurrentModificationError.
func (m Module) Transition(
	ctx context.Context,
	document entities.Document,
	target string,
	actor string,
	comment string,
) (entities.Document, error) {
	result, err := m.Handler.TransitionDocument.Execute(ctx, commands.TransitionDocumentCommand{
		Document:    document,
		TargetState: target,
		Actor:       actor,
		Comment:     comment,
	})
	if err != nil {
		return entities.Document{}, err
	}
	return result.Document, nil
}

// History returns the audit entries of documentID, oldest first.
func (m Module) History(ctx context.Context, documentID string) ([]entities.TransitionLogEntry, error) {
	return m.Handler.ListTransitions.Execute(ctx, documentID)
}

// OutboxRelay returns a relay draining this module's outbox into publisher.
func (m Module) OutboxRelay(publisher ports.EventPublisher, batchSize int) workers.OutboxRelay {
	return workers.OutboxRelay{
		Outbox:    m.Outbox,
		Publisher: publisher,
		Clock:     m.Clock,
		BatchSize: batchSize,
		Metrics:   m.Metrics,
		Logger:    m.Logger,
	}
}
