package entities

import (
	"encoding/json"
	"time"
)

// Document is the lifecycle view of a workflow document. Business fields owned by
// the calling module travel in Payload and are never interpreted here.
type Document struct {
	DocumentID string
	SequenceID string
	Family     string
	Year       int
	Sequence   int64
	Status     string
	Version    int64
	Payload    json.RawMessage
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TransitionLogEntry is one accepted status change. Entries are append-only.
type TransitionLogEntry struct {
	EntryID        string
	DocumentFamily string
	DocumentID     string
	SequenceID     string
	FromState      string
	ToState        string
	Actor          string
	Comment        string
	CreatedAt      time.Time
}
