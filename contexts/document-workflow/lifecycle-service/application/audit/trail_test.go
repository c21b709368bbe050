package audit_test

import (
	"context"
	"testing"
	"time"

	"vihadmin/contexts/document-workflow/lifecycle-service/adapters/memory"
	"vihadmin/contexts/document-workflow/lifecycle-service/application/audit"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrail(t *testing.T, store *memory.Store) audit.Trail {
	return audit.Trail{Clock: store, IDGen: store, Logger: slogt.New(t)}
}

func TestRecordAppendsTrimmedEntry(t *testing.T) {
	store := memory.NewStore(nil)
	pinned := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return pinned })
	trail := newTrail(t, store)
	ctx := context.Background()

	entry, err := trail.Record(ctx, store, audit.RecordInput{
		Family:     "CONTRACT",
		DocumentID: "doc-1",
		SequenceID: "VIH-CON-2025-0001",
		FromState:  "draft",
		ToState:    "pending_review",
		Actor:      "  alice ",
		Comment:    " ready for review ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.EntryID)
	assert.Equal(t, "alice", entry.Actor)
	assert.Equal(t, "ready for review", entry.Comment)
	assert.Equal(t, pinned, entry.CreatedAt)

	history, err := trail.History(ctx, store, "doc-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entry.EntryID, history[0].EntryID)
}

func TestRecordRequiresActorAndDocument(t *testing.T) {
	store := memory.NewStore(nil)
	trail := newTrail(t, store)
	ctx := context.Background()

	_, err := trail.Record(ctx, store, audit.RecordInput{DocumentID: "doc-1", FromState: "draft", ToState: "pending_review"})
	require.ErrorIs(t, err, domainerrors.ErrActorRequired)

	_, err = trail.Record(ctx, store, audit.RecordInput{Actor: "alice", FromState: "draft", ToState: "pending_review"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidDocumentInput)

	_, err = trail.History(ctx, store, " ")
	require.ErrorIs(t, err, domainerrors.ErrInvalidDocumentInput)

	history, err := trail.History(ctx, store, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}
