package postgresadapter

import (
	"encoding/json"
	"time"

	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
)

type sequenceCounterModel struct {
	Family    string    `gorm:"column:family;primaryKey"`
	Year      int       `gorm:"column:year;primaryKey"`
	LastValue int64     `gorm:"column:last_value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (sequenceCounterModel) TableName() string {
	return "sequence_counters"
}

type documentModel struct {
	DocumentID string    `gorm:"column:document_id;primaryKey"`
	SequenceID string    `gorm:"column:sequence_id"`
	Family     string    `gorm:"column:family"`
	Year       int       `gorm:"column:year"`
	Sequence   int64     `gorm:"column:sequence"`
	Status     string    `gorm:"column:status"`
	Version    int64     `gorm:"column:version"`
	Payload    string    `gorm:"column:payload"`
	CreatedBy  string    `gorm:"column:created_by"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (documentModel) TableName() string {
	return "lifecycle_documents"
}

func documentModelFromEntity(item entities.Document) documentModel {
	payload := string(item.Payload)
	if payload == "" {
		payload = "{}"
	}
	return documentModel{
		DocumentID: item.DocumentID,
		SequenceID: item.SequenceID,
		Family:     item.Family,
		Year:       item.Year,
		Sequence:   item.Sequence,
		Status:     item.Status,
		Version:    item.Version,
		Payload:    payload,
		CreatedBy:  item.CreatedBy,
		CreatedAt:  item.CreatedAt.UTC(),
		UpdatedAt:  item.UpdatedAt.UTC(),
	}
}

func (m documentModel) toEntity() entities.Document {
	return entities.Document{
		DocumentID: m.DocumentID,
		SequenceID: m.SequenceID,
		Family:     m.Family,
		Year:       m.Year,
		Sequence:   m.Sequence,
		Status:     m.Status,
		Version:    m.Version,
		Payload:    json.RawMessage(m.Payload),
		CreatedBy:  m.CreatedBy,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

type transitionLogModel struct {
	EntryID        string    `gorm:"column:entry_id;primaryKey"`
	DocumentFamily string    `gorm:"column:document_family"`
	DocumentID     string    `gorm:"column:document_id"`
	SequenceID     string    `gorm:"column:sequence_id"`
	FromState      string    `gorm:"column:from_state"`
	ToState        string    `gorm:"column:to_state"`
	Actor          string    `gorm:"column:actor"`
	Comment        string    `gorm:"column:comment"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (transitionLogModel) TableName() string {
	return "document_transition_log"
}

func (m transitionLogModel) toEntity() entities.TransitionLogEntry {
	return entities.TransitionLogEntry{
		EntryID:        m.EntryID,
		DocumentFamily: m.DocumentFamily,
		DocumentID:     m.DocumentID,
		SequenceID:     m.SequenceID,
		FromState:      m.FromState,
		ToState:        m.ToState,
		Actor:          m.Actor,
		Comment:        m.Comment,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload string    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "lifecycle_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      string     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "lifecycle_outbox"
}
