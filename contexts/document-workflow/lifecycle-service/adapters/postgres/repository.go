package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository implements every lifecycle port on gorm. Inside WithinTransaction
// the same type is bound to the transaction handle and passed as ports.Tx.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Repository{db: tx, logger: r.logger})
	})
}

// IncrementSequence locks the (family, year) counter row, creating it on first
// use, and returns the incremented value. The row lock is held until the
// surrounding transaction ends, so concurrent creates for the same family and
// year serialize here.
func (r *Repository) IncrementSequence(ctx context.Context, family string, year int) (int64, error) {
	family = strings.TrimSpace(family)
	var next int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		seed := sequenceCounterModel{Family: family, Year: year, LastValue: 0, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "family"}, {Name: "year"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return fmt.Errorf("seed sequence counter: %w", err)
		}

		var counter sequenceCounterModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("family = ? AND year = ?", family, year).
			First(&counter).
			Error; err != nil {
			return fmt.Errorf("lock sequence counter: %w", err)
		}

		next = counter.LastValue + 1
		result := tx.Model(&sequenceCounterModel{}).
			Where("family = ? AND year = ? AND last_value = ?", family, year, counter.LastValue).
			Updates(map[string]any{
				"last_value": next,
				"updated_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("increment sequence counter: %w", result.Error)
		}
		if result.RowsAffected != 1 {
			return fmt.Errorf("increment sequence counter: counter moved while locked")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// CreateDocument inserts inside a savepoint so a unique violation leaves the
// surrounding transaction usable for telling the two keys apart.
func (r *Repository) CreateDocument(ctx context.Context, document entities.Document) error {
	row := documentModelFromEntity(document)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return err
	}
	if _, lookupErr := r.GetDocument(ctx, row.DocumentID); lookupErr == nil {
		return fmt.Errorf("%w: document %s already exists", domainerrors.ErrInvalidDocumentInput, row.DocumentID)
	}
	return fmt.Errorf("%w: %s", domainerrors.ErrSequenceIDCollision, row.SequenceID)
}

func (r *Repository) GetDocument(ctx context.Context, documentID string) (entities.Document, error) {
	return r.firstDocument(ctx, "document_id = ?", strings.TrimSpace(documentID))
}

func (r *Repository) GetDocumentBySequenceID(ctx context.Context, sequenceID string) (entities.Document, error) {
	return r.firstDocument(ctx, "sequence_id = ?", strings.TrimSpace(sequenceID))
}

func (r *Repository) firstDocument(ctx context.Context, query string, value string) (entities.Document, error) {
	var row documentModel
	err := r.db.WithContext(ctx).
		Where(query, value).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Document{}, domainerrors.ErrDocumentNotFound
		}
		return entities.Document{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListDocuments(ctx context.Context, filter ports.DocumentFilter) ([]entities.Document, error) {
	tx := r.db.WithContext(ctx).Model(&documentModel{})
	if strings.TrimSpace(filter.Family) != "" {
		tx = tx.Where("family = ?", strings.TrimSpace(filter.Family))
	}
	if strings.TrimSpace(filter.Status) != "" {
		tx = tx.Where("status = ?", strings.TrimSpace(filter.Status))
	}
	if filter.Year != 0 {
		tx = tx.Where("year = ?", filter.Year)
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}

	var rows []documentModel
	if err := tx.Order("created_at DESC").Order("sequence_id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]entities.Document, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// SwapDocumentStatus updates status only when the stored family, status and
// version still match what the caller read.
func (r *Repository) SwapDocumentStatus(ctx context.Context, swap ports.StatusSwap) (entities.Document, error) {
	documentID := strings.TrimSpace(swap.DocumentID)
	result := r.db.WithContext(ctx).
		Model(&documentModel{}).
		Where("document_id = ? AND family = ? AND status = ? AND version = ?",
			documentID, strings.TrimSpace(swap.Family), swap.FromStatus, swap.ExpectedVersion).
		Updates(map[string]any{
			"status":     swap.ToStatus,
			"version":    gorm.Expr("version + 1"),
			"updated_at": swap.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return entities.Document{}, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetDocument(ctx, documentID); err != nil {
			return entities.Document{}, err
		}
		return entities.Document{}, domainerrors.ErrConcurrentModification
	}
	return r.GetDocument(ctx, documentID)
}

func (r *Repository) AppendTransition(ctx context.Context, entry entities.TransitionLogEntry) error {
	row := transitionLogModel{
		EntryID:        strings.TrimSpace(entry.EntryID),
		DocumentFamily: strings.TrimSpace(entry.DocumentFamily),
		DocumentID:     strings.TrimSpace(entry.DocumentID),
		SequenceID:     strings.TrimSpace(entry.SequenceID),
		FromState:      strings.TrimSpace(entry.FromState),
		ToState:        strings.TrimSpace(entry.ToState),
		Actor:          strings.TrimSpace(entry.Actor),
		Comment:        strings.TrimSpace(entry.Comment),
		CreatedAt:      entry.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transition entry %s already recorded", domainerrors.ErrInvalidDocumentInput, row.EntryID)
		}
		return err
	}
	return nil
}

func (r *Repository) ListTransitions(ctx context.Context, documentID string) ([]entities.TransitionLogEntry, error) {
	var rows []transitionLogModel
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", strings.TrimSpace(documentID)).
		Order("created_at ASC").
		Order("entry_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.TransitionLogEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}

	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}

	return ports.IdempotencyRecord{
		Key:             row.Key,
		RequestHash:     row.RequestHash,
		ResponsePayload: []byte(row.ResponsePayload),
		ExpiresAt:       row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:             strings.TrimSpace(record.Key),
		RequestHash:     record.RequestHash,
		ResponsePayload: string(record.ResponsePayload),
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RequestHash != row.RequestHash {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	if existing.ResponsePayload != row.ResponsePayload {
		return domainerrors.ErrIdempotencyKeyReplayed
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      string(payload),
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return err
	}
	if !bytes.Equal([]byte(existing.Payload), []byte(row.Payload)) {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      []byte(row.Payload),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("outbox row %s not found", outboxID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
