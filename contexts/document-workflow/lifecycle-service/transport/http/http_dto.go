package http

import "encoding/json"

type CreateDocumentRequest struct {
	Family    string          `json:"family" validate:"required,max=32"`
	Year      int             `json:"year" validate:"required,min=1,max=9999"`
	Payload   json.RawMessage `json:"payload,omitempty" swaggertype:"object"`
	CreatedBy string          `json:"created_by" validate:"max=128"`
}

type CreateDocumentResponse struct {
	Document DocumentDTO `json:"document"`
	Replayed bool        `json:"replayed"`
}

type TransitionDocumentRequest struct {
	TargetState     string `json:"target_state" validate:"required,max=64"`
	Actor           string `json:"actor" validate:"required,max=128"`
	Comment         string `json:"comment" validate:"max=2000"`
	ExpectedVersion int64  `json:"expected_version" validate:"gte=0"`
}

type TransitionDocumentResponse struct {
	Document DocumentDTO      `json:"document"`
	Entry    TransitionLogDTO `json:"entry"`
}

type DocumentDTO struct {
	DocumentID      string          `json:"document_id"`
	SequenceID      string          `json:"sequence_id"`
	Family          string          `json:"family"`
	Year            int             `json:"year"`
	Sequence        int64           `json:"sequence"`
	Status          string          `json:"status"`
	Version         int64           `json:"version"`
	Payload         json.RawMessage `json:"payload" swaggertype:"object"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
	LegalNextStates []string        `json:"legal_next_states,omitempty"`
	Terminal        bool            `json:"terminal"`
}

type GetDocumentResponse struct {
	Document DocumentDTO `json:"document"`
}

type ListDocumentsResponse struct {
	Items []DocumentDTO `json:"items"`
}

type TransitionLogDTO struct {
	EntryID    string `json:"entry_id"`
	DocumentID string `json:"document_id"`
	SequenceID string `json:"sequence_id,omitempty"`
	Family     string `json:"family"`
	FromState  string `json:"from_state"`
	ToState    string `json:"to_state"`
	Actor      string `json:"actor"`
	Comment    string `json:"comment,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type ListTransitionsResponse struct {
	Items []TransitionLogDTO `json:"items"`
}

type StateDTO struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Next     []string `json:"next"`
	Terminal bool     `json:"terminal"`
}

type FamilyDTO struct {
	Key          string     `json:"key"`
	Prefix       string     `json:"prefix"`
	Label        string     `json:"label"`
	InitialState string     `json:"initial_state"`
	States       []StateDTO `json:"states"`
}

type ListFamiliesResponse struct {
	Items []FamilyDTO `json:"items"`
}
