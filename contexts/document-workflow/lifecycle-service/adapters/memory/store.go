package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"

	"github.com/google/uuid"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type counterKey struct {
	family string
	year   int
}

type outboxRow struct {
	message     ports.OutboxMessage
	status      string
	publishedAt *time.Time
}

type state struct {
	counters    map[counterKey]int64
	documents   map[string]entities.Document
	sequenceIDs map[string]string
	transitions []entities.TransitionLogEntry
	idempotency map[string]ports.IdempotencyRecord
	outbox      []outboxRow
}

func newState() *state {
	return &state{
		counters:    make(map[counterKey]int64),
		documents:   make(map[string]entities.Document),
		sequenceIDs: make(map[string]string),
		transitions: make([]entities.TransitionLogEntry, 0),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make([]outboxRow, 0),
	}
}

func (s *state) clone() *state {
	next := &state{
		counters:    make(map[counterKey]int64, len(s.counters)),
		documents:   make(map[string]entities.Document, len(s.documents)),
		sequenceIDs: make(map[string]string, len(s.sequenceIDs)),
		transitions: append([]entities.TransitionLogEntry(nil), s.transitions...),
		idempotency: make(map[string]ports.IdempotencyRecord, len(s.idempotency)),
		outbox:      append([]outboxRow(nil), s.outbox...),
	}
	for key, value := range s.counters {
		next.counters[key] = value
	}
	for key, value := range s.documents {
		next.documents[key] = value
	}
	for key, value := range s.sequenceIDs {
		next.sequenceIDs[key] = value
	}
	for key, value := range s.idempotency {
		next.idempotency[key] = value
	}
	return next
}

// Store keeps lifecycle state in process. Transactions run one at a time against
// a copy of the committed state, which replaces it only when fn succeeds.
type Store struct {
	mu        sync.RWMutex
	txMu      sync.Mutex
	committed *state
	now       func() time.Time
}

func NewStore(seed []entities.Document) *Store {
	initial := newState()
	for _, item := range seed {
		initial.documents[item.DocumentID] = item
		if item.SequenceID != "" {
			initial.sequenceIDs[item.SequenceID] = item.DocumentID
		}
	}
	return &Store{
		committed: initial,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the store clock. Tests use it to pin timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.committed.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &txView{state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.committed = working
	s.mu.Unlock()
	return nil
}

func (s *Store) read() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

func (s *Store) IncrementSequence(ctx context.Context, family string, year int) (int64, error) {
	var value int64
	err := s.WithinTransaction(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		value, err = tx.IncrementSequence(ctx, family, year)
		return err
	})
	return value, err
}

func (s *Store) CreateDocument(ctx context.Context, document entities.Document) error {
	return s.WithinTransaction(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.CreateDocument(ctx, document)
	})
}

func (s *Store) GetDocument(_ context.Context, documentID string) (entities.Document, error) {
	return s.read().getDocument(documentID)
}

func (s *Store) GetDocumentBySequenceID(_ context.Context, sequenceID string) (entities.Document, error) {
	return s.read().getDocumentBySequenceID(sequenceID)
}

func (s *Store) ListDocuments(_ context.Context, filter ports.DocumentFilter) ([]entities.Document, error) {
	return s.read().listDocuments(filter), nil
}

func (s *Store) SwapDocumentStatus(ctx context.Context, swap ports.StatusSwap) (entities.Document, error) {
	var updated entities.Document
	err := s.WithinTransaction(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		updated, err = tx.SwapDocumentStatus(ctx, swap)
		return err
	})
	return updated, err
}

func (s *Store) AppendTransition(ctx context.Context, entry entities.TransitionLogEntry) error {
	return s.WithinTransaction(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.AppendTransition(ctx, entry)
	})
}

func (s *Store) ListTransitions(_ context.Context, documentID string) ([]entities.TransitionLogEntry, error) {
	return s.read().listTransitions(documentID), nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	record, ok := s.read().idempotency[strings.TrimSpace(key)]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.IsZero() && now.UTC().After(record.ExpiresAt.UTC()) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	return s.WithinTransaction(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.PutRecord(ctx, record)
	})
}

func (s *Store) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	return s.WithinTransaction(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.AppendOutbox(ctx, envelope)
	})
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.read().outbox {
		if row.status != outboxStatusPending {
			continue
		}
		items = append(items, row.message)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.committed.clone()
	s.mu.RUnlock()

	outboxID = strings.TrimSpace(outboxID)
	for i := range working.outbox {
		if working.outbox[i].message.OutboxID != outboxID {
			continue
		}
		timestamp := publishedAt.UTC()
		working.outbox[i].status = outboxStatusPublished
		working.outbox[i].publishedAt = &timestamp

		s.mu.Lock()
		s.committed = working
		s.mu.Unlock()
		return nil
	}
	return fmt.Errorf("outbox row %s not found", outboxID)
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// PendingOutboxCount reports rows not yet published.
func (s *Store) PendingOutboxCount() int {
	count := 0
	for _, row := range s.read().outbox {
		if row.status == outboxStatusPending {
			count++
		}
	}
	return count
}

type txView struct {
	state *state
}

func (tx *txView) IncrementSequence(_ context.Context, family string, year int) (int64, error) {
	key := counterKey{family: strings.TrimSpace(family), year: year}
	tx.state.counters[key]++
	return tx.state.counters[key], nil
}

func (tx *txView) CreateDocument(_ context.Context, document entities.Document) error {
	if _, exists := tx.state.documents[document.DocumentID]; exists {
		return fmt.Errorf("%w: document %s already exists", domainerrors.ErrInvalidDocumentInput, document.DocumentID)
	}
	if _, exists := tx.state.sequenceIDs[document.SequenceID]; exists {
		return fmt.Errorf("%w: %s", domainerrors.ErrSequenceIDCollision, document.SequenceID)
	}
	document.Payload = append(json.RawMessage(nil), document.Payload...)
	tx.state.documents[document.DocumentID] = document
	tx.state.sequenceIDs[document.SequenceID] = document.DocumentID
	return nil
}

func (tx *txView) GetDocument(_ context.Context, documentID string) (entities.Document, error) {
	return tx.state.getDocument(documentID)
}

func (tx *txView) GetDocumentBySequenceID(_ context.Context, sequenceID string) (entities.Document, error) {
	return tx.state.getDocumentBySequenceID(sequenceID)
}

func (tx *txView) ListDocuments(_ context.Context, filter ports.DocumentFilter) ([]entities.Document, error) {
	return tx.state.listDocuments(filter), nil
}

func (tx *txView) SwapDocumentStatus(_ context.Context, swap ports.StatusSwap) (entities.Document, error) {
	document, exists := tx.state.documents[strings.TrimSpace(swap.DocumentID)]
	if !exists {
		return entities.Document{}, domainerrors.ErrDocumentNotFound
	}
	if document.Family != strings.TrimSpace(swap.Family) ||
		document.Status != swap.FromStatus ||
		document.Version != swap.ExpectedVersion {
		return entities.Document{}, domainerrors.ErrConcurrentModification
	}
	document.Status = swap.ToStatus
	document.Version++
	document.UpdatedAt = swap.UpdatedAt.UTC()
	tx.state.documents[document.DocumentID] = document
	return document, nil
}

func (tx *txView) AppendTransition(_ context.Context, entry entities.TransitionLogEntry) error {
	for _, existing := range tx.state.transitions {
		if existing.EntryID == entry.EntryID {
			return fmt.Errorf("%w: transition entry %s already recorded", domainerrors.ErrInvalidDocumentInput, entry.EntryID)
		}
	}
	tx.state.transitions = append(tx.state.transitions, entry)
	return nil
}

func (tx *txView) ListTransitions(_ context.Context, documentID string) ([]entities.TransitionLogEntry, error) {
	return tx.state.listTransitions(documentID), nil
}

func (tx *txView) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	record, ok := tx.state.idempotency[strings.TrimSpace(key)]
	if !ok || (!record.ExpiresAt.IsZero() && now.UTC().After(record.ExpiresAt.UTC())) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (tx *txView) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	key := strings.TrimSpace(record.Key)
	if existing, ok := tx.state.idempotency[key]; ok {
		if existing.RequestHash != record.RequestHash {
			return domainerrors.ErrIdempotencyKeyConflict
		}
		if !bytes.Equal(existing.ResponsePayload, record.ResponsePayload) {
			return domainerrors.ErrIdempotencyKeyReplayed
		}
		return nil
	}
	record.Key = key
	record.ResponsePayload = append([]byte(nil), record.ResponsePayload...)
	tx.state.idempotency[key] = record
	return nil
}

func (tx *txView) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	for _, row := range tx.state.outbox {
		if row.message.OutboxID == outboxID {
			if !bytes.Equal(row.message.Payload, payload) {
				return domainerrors.ErrIdempotencyKeyConflict
			}
			return nil
		}
	}
	tx.state.outbox = append(tx.state.outbox, outboxRow{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
		status: outboxStatusPending,
	})
	return nil
}

func (s *state) getDocument(documentID string) (entities.Document, error) {
	document, ok := s.documents[strings.TrimSpace(documentID)]
	if !ok {
		return entities.Document{}, domainerrors.ErrDocumentNotFound
	}
	return document, nil
}

func (s *state) getDocumentBySequenceID(sequenceID string) (entities.Document, error) {
	documentID, ok := s.sequenceIDs[strings.TrimSpace(sequenceID)]
	if !ok {
		return entities.Document{}, domainerrors.ErrDocumentNotFound
	}
	return s.getDocument(documentID)
}

func (s *state) listDocuments(filter ports.DocumentFilter) []entities.Document {
	items := make([]entities.Document, 0, len(s.documents))
	for _, document := range s.documents {
		if filter.Family != "" && document.Family != filter.Family {
			continue
		}
		if filter.Status != "" && document.Status != filter.Status {
			continue
		}
		if filter.Year != 0 && document.Year != filter.Year {
			continue
		}
		items = append(items, document)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].SequenceID > items[j].SequenceID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items
}

func (s *state) listTransitions(documentID string) []entities.TransitionLogEntry {
	documentID = strings.TrimSpace(documentID)
	items := make([]entities.TransitionLogEntry, 0)
	for _, entry := range s.transitions {
		if entry.DocumentID == documentID {
			items = append(items, entry)
		}
	}
	return items
}
