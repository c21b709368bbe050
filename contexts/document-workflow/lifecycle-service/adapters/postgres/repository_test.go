package postgresadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	postgresadapter "vihadmin/contexts/document-workflow/lifecycle-service/adapters/postgres"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"
	"vihadmin/internal/platform/db"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestRepository(t *testing.T) *postgresadapter.Repository {
	t.Helper()
	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "lifecycle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, postgresadapter.Migrate(context.Background(), database.DB, db.DialectSQLite))
	return postgresadapter.NewRepository(database.DB, slogt.New(t))
}

func testDocument(id string, seq int64) entities.Document {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return entities.Document{
		DocumentID: id,
		SequenceID: fmt.Sprintf("VIH-CON-2025-%04d", seq),
		Family:     "CONTRACT",
		Year:       2025,
		Sequence:   seq,
		Status:     "draft",
		Version:    1,
		Payload:    json.RawMessage(`{"title":"Supply agreement"}`),
		CreatedBy:  "user-1",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestIncrementSequenceIsScopedByFamilyAndYear(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := repo.IncrementSequence(ctx, "CONTRACT", 2025)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := repo.IncrementSequence(ctx, "CONTRACT", 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	got, err = repo.IncrementSequence(ctx, "OPPORTUNITY", 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestIncrementSequenceConcurrentCallsNeverCollide(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	const workers = 25
	var (
		mu     sync.Mutex
		values []int64
	)
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			value, err := repo.IncrementSequence(groupCtx, "ADM-PUR", 2025)
			if err != nil {
				return err
			}
			mu.Lock()
			values = append(values, value)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, group.Wait())

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, value := range values {
		assert.Equal(t, int64(i+1), value)
	}
}

func TestWithinTransactionRollsBackCounterAndDocument(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	boom := errors.New("insert failed downstream")

	err := repo.WithinTransaction(ctx, func(ctx context.Context, tx ports.Tx) error {
		value, err := tx.IncrementSequence(ctx, "CONTRACT", 2025)
		require.NoError(t, err)
		require.Equal(t, int64(1), value)
		require.NoError(t, tx.CreateDocument(ctx, testDocument("doc-rollback", value)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.GetDocument(ctx, "doc-rollback")
	require.ErrorIs(t, err, domainerrors.ErrDocumentNotFound)

	value, err := repo.IncrementSequence(ctx, "CONTRACT", 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(1), value)
}

func TestSwapDocumentStatusComparesFamilyStatusAndVersion(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateDocument(ctx, testDocument("doc-1", 1)))

	updated, err := repo.SwapDocumentStatus(ctx, ports.StatusSwap{
		DocumentID:      "doc-1",
		Family:          "CONTRACT",
		FromStatus:      "draft",
		ToStatus:        "pending_review",
		ExpectedVersion: 1,
		UpdatedAt:       time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "pending_review", updated.Status)
	assert.Equal(t, int64(2), updated.Version)

	_, err = repo.SwapDocumentStatus(ctx, ports.StatusSwap{
		DocumentID:      "doc-1",
		Family:          "CONTRACT",
		FromStatus:      "draft",
		ToStatus:        "cancelled",
		ExpectedVersion: 1,
		UpdatedAt:       time.Now().UTC(),
	})
	require.ErrorIs(t, err, domainerrors.ErrConcurrentModification)

	_, err = repo.SwapDocumentStatus(ctx, ports.StatusSwap{
		DocumentID:      "doc-missing",
		FromStatus:      "draft",
		ToStatus:        "cancelled",
		ExpectedVersion: 1,
		UpdatedAt:       time.Now().UTC(),
	})
	require.ErrorIs(t, err, domainerrors.ErrDocumentNotFound)

	_, err = repo.SwapDocumentStatus(ctx, ports.StatusSwap{
		DocumentID:      "doc-1",
		Family:          "ADM-PUR",
		FromStatus:      "pending_review",
		ToStatus:        "approved",
		ExpectedVersion: 2,
		UpdatedAt:       time.Now().UTC(),
	})
	require.ErrorIs(t, err, domainerrors.ErrConcurrentModification)

	stored, err := repo.GetDocumentBySequenceID(ctx, "VIH-CON-2025-0001")
	require.NoError(t, err)
	assert.Equal(t, "pending_review", stored.Status)
	assert.JSONEq(t, `{"title":"Supply agreement"}`, string(stored.Payload))
}

func TestTransitionLogIsOrderedPerDocument(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	entries := []entities.TransitionLogEntry{
		{EntryID: "e-2", DocumentFamily: "CONTRACT", DocumentID: "doc-1", FromState: "pending_review", ToState: "reviewing", Actor: "bob", CreatedAt: base.Add(time.Hour)},
		{EntryID: "e-1", DocumentFamily: "CONTRACT", DocumentID: "doc-1", FromState: "draft", ToState: "pending_review", Actor: "alice", Comment: "ready", CreatedAt: base},
		{EntryID: "e-3", DocumentFamily: "CONTRACT", DocumentID: "doc-2", FromState: "draft", ToState: "cancelled", Actor: "carol", CreatedAt: base},
	}
	for _, entry := range entries {
		require.NoError(t, repo.AppendTransition(ctx, entry))
	}
	require.ErrorIs(t, repo.AppendTransition(ctx, entries[0]), domainerrors.ErrInvalidDocumentInput)

	history, err := repo.ListTransitions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "e-1", history[0].EntryID)
	assert.Equal(t, "ready", history[0].Comment)
	assert.Equal(t, "e-2", history[1].EntryID)
}

func TestListDocumentsFilters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := testDocument("doc-1", 1)
	second := testDocument("doc-2", 2)
	second.Status = "cancelled"
	second.CreatedAt = second.CreatedAt.Add(time.Minute)
	require.NoError(t, repo.CreateDocument(ctx, first))
	require.NoError(t, repo.CreateDocument(ctx, second))

	all, err := repo.ListDocuments(ctx, ports.DocumentFilter{Family: "CONTRACT"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "doc-2", all[0].DocumentID)

	drafts, err := repo.ListDocuments(ctx, ports.DocumentFilter{Family: "CONTRACT", Status: "draft", Year: 2025})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "doc-1", drafts[0].DocumentID)

	none, err := repo.ListDocuments(ctx, ports.DocumentFilter{Year: 2024})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCreateDocumentSeparatesSequenceCollisions(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateDocument(ctx, testDocument("doc-1", 1)))

	err := repo.WithinTransaction(ctx, func(ctx context.Context, tx ports.Tx) error {
		if err := tx.CreateDocument(ctx, testDocument("doc-2", 1)); !errors.Is(err, domainerrors.ErrSequenceIDCollision) {
			return fmt.Errorf("expected sequence collision, got %v", err)
		}
		// the transaction stays usable after the failed insert
		return tx.CreateDocument(ctx, testDocument("doc-2", 2))
	})
	require.NoError(t, err)

	err = repo.CreateDocument(ctx, testDocument("doc-1", 3))
	require.ErrorIs(t, err, domainerrors.ErrInvalidDocumentInput)
	require.NotErrorIs(t, err, domainerrors.ErrSequenceIDCollision)
}

func TestIdempotencyRecordConflict(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	record := ports.IdempotencyRecord{Key: "idem-1", RequestHash: "h1", ResponsePayload: []byte(`{"a":1}`), ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.PutRecord(ctx, record))
	require.NoError(t, repo.PutRecord(ctx, record))

	conflicting := record
	conflicting.RequestHash = "h2"
	require.ErrorIs(t, repo.PutRecord(ctx, conflicting), domainerrors.ErrIdempotencyKeyConflict)

	raced := record
	raced.ResponsePayload = []byte(`{"a":2}`)
	require.ErrorIs(t, repo.PutRecord(ctx, raced), domainerrors.ErrIdempotencyKeyReplayed)

	found, ok, err := repo.GetRecord(ctx, "idem-1", now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "h1", found.RequestHash)

	_, ok, err = repo.GetRecord(ctx, "idem-1", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOutboxPendingAndPublished(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	envelope := ports.EventEnvelope{
		EventID:      "evt-1",
		EventType:    "document.created",
		OccurredAt:   now,
		PartitionKey: "doc-1",
		Data:         json.RawMessage(`{"document_id":"doc-1"}`),
	}
	require.NoError(t, repo.AppendOutbox(ctx, envelope))
	require.NoError(t, repo.AppendOutbox(ctx, envelope))

	pending, err := repo.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "document.created", pending[0].EventType)

	require.NoError(t, repo.MarkOutboxPublished(ctx, "evt-1", now.Add(time.Second)))
	pending, err = repo.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.Error(t, repo.MarkOutboxPublished(ctx, "evt-missing", now))
}
