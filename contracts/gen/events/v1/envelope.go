package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical, versioned event envelope for cross-runtime use.
// Fields may be added; existing fields keep their names and meaning.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

const (
	EventTypeDocumentCreated      = "document.created"
	EventTypeDocumentTransitioned = "document.transitioned"
)

// DocumentCreatedData is the Data payload of document.created.
type DocumentCreatedData struct {
	DocumentID string    `json:"document_id"`
	SequenceID string    `json:"sequence_id"`
	Family     string    `json:"family"`
	Status     string    `json:"status"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DocumentTransitionedData is the Data payload of document.transitioned.
type DocumentTransitionedData struct {
	DocumentID string    `json:"document_id"`
	SequenceID string    `json:"sequence_id"`
	Family     string    `json:"family"`
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	Actor      string    `json:"actor"`
	Comment    string    `json:"comment,omitempty"`
	Version    int64     `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}
