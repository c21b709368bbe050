package commands

import (
	"encoding/json"
	"time"

	"vihadmin/contexts/document-workflow/lifecycle-service/ports"
)

func newDocumentEnvelope(
	eventID string,
	eventType string,
	documentID string,
	occurredAt time.Time,
	data any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "lifecycle-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "document_id",
		PartitionKey:     documentID,
		Data:             payload,
	}, nil
}
