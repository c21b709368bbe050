package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "vihadmin/contexts/document-workflow/lifecycle-service/application"
	"vihadmin/contexts/document-workflow/lifecycle-service/application/commands"
	"vihadmin/contexts/document-workflow/lifecycle-service/application/queries"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
	httptransport "vihadmin/contexts/document-workflow/lifecycle-service/transport/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Handler struct {
	CreateDocument     commands.CreateDocumentUseCase
	TransitionDocument commands.TransitionDocumentUseCase
	GetDocument        queries.GetDocumentUseCase
	ListDocuments      queries.ListDocumentsUseCase
	ListTransitions    queries.ListTransitionsUseCase
	ListFamilies       queries.ListFamiliesUseCase
	DescribeFamily     queries.DescribeFamilyUseCase
	Logger             *slog.Logger
}

func (h Handler) CreateDocumentHandler(
	ctx context.Context,
	userID string,
	idempotencyKey string,
	req httptransport.CreateDocumentRequest,
) (httptransport.CreateDocumentResponse, error) {
	if err := validateRequest(req); err != nil {
		return httptransport.CreateDocumentResponse{}, err
	}
	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		createdBy = userID
	}
	result, err := h.CreateDocument.Execute(ctx, commands.CreateDocumentCommand{
		Family:         req.Family,
		Year:           req.Year,
		Payload:        req.Payload,
		CreatedBy:      createdBy,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.CreateDocumentResponse{}, err
	}

	dto := mapDocument(result.Document)
	if graph, err := h.GetDocument.Registry.Graph(result.Document.Family); err == nil {
		dto.LegalNextStates = graph.LegalNextStates(result.Document.Status)
		dto.Terminal = graph.IsTerminal(result.Document.Status)
	}
	return httptransport.CreateDocumentResponse{
		Document: dto,
		Replayed: result.Replayed,
	}, nil
}

func (h Handler) TransitionDocumentHandler(
	ctx context.Context,
	userID string,
	reference string,
	req httptransport.TransitionDocumentRequest,
) (httptransport.TransitionDocumentResponse, error) {
	if strings.TrimSpace(req.Actor) == "" {
		req.Actor = userID
	}
	if err := validateRequest(req); err != nil {
		return httptransport.TransitionDocumentResponse{}, err
	}

	view, err := h.GetDocument.Execute(ctx, reference)
	if err != nil {
		return httptransport.TransitionDocumentResponse{}, err
	}
	result, err := h.TransitionDocument.ExecuteByID(ctx, commands.TransitionByIDCommand{
		DocumentID:      view.Document.DocumentID,
		ExpectedVersion: req.ExpectedVersion,
		TargetState:     req.TargetState,
		Actor:           req.Actor,
		Comment:         req.Comment,
	})
	if err != nil {
		return httptransport.TransitionDocumentResponse{}, err
	}

	dto := mapDocument(result.Document)
	if graph, err := h.GetDocument.Registry.Graph(result.Document.Family); err == nil {
		dto.LegalNextStates = graph.LegalNextStates(result.Document.Status)
		dto.Terminal = graph.IsTerminal(result.Document.Status)
	}
	return httptransport.TransitionDocumentResponse{
		Document: dto,
		Entry:    mapTransition(result.Entry),
	}, nil
}

func (h Handler) GetDocumentHandler(ctx context.Context, reference string) (httptransport.GetDocumentResponse, error) {
	view, err := h.GetDocument.Execute(ctx, reference)
	if err != nil {
		return httptransport.GetDocumentResponse{}, err
	}
	dto := mapDocument(view.Document)
	dto.LegalNextStates = view.LegalNextStates
	dto.Terminal = view.Terminal
	return httptransport.GetDocumentResponse{Document: dto}, nil
}

func (h Handler) ListDocumentsHandler(
	ctx context.Context,
	family string,
	status string,
	year int,
	limit int,
) (httptransport.ListDocumentsResponse, error) {
	items, err := h.ListDocuments.Execute(ctx, queries.ListDocumentsQuery{
		Family: family,
		Status: status,
		Year:   year,
		Limit:  limit,
	})
	if err != nil {
		return httptransport.ListDocumentsResponse{}, err
	}
	result := make([]httptransport.DocumentDTO, 0, len(items))
	for _, item := range items {
		result = append(result, mapDocument(item))
	}
	return httptransport.ListDocumentsResponse{Items: result}, nil
}

func (h Handler) ListTransitionsHandler(ctx context.Context, reference string) (httptransport.ListTransitionsResponse, error) {
	view, err := h.GetDocument.Execute(ctx, reference)
	if err != nil {
		return httptransport.ListTransitionsResponse{}, err
	}
	items, err := h.ListTransitions.Execute(ctx, view.Document.DocumentID)
	if err != nil {
		return httptransport.ListTransitionsResponse{}, err
	}
	result := make([]httptransport.TransitionLogDTO, 0, len(items))
	for _, item := range items {
		result = append(result, mapTransition(item))
	}
	return httptransport.ListTransitionsResponse{Items: result}, nil
}

func (h Handler) ListFamiliesHandler(_ context.Context) httptransport.ListFamiliesResponse {
	items := h.ListFamilies.Execute()
	result := make([]httptransport.FamilyDTO, 0, len(items))
	for _, item := range items {
		result = append(result, mapFamily(item))
	}
	return httptransport.ListFamiliesResponse{Items: result}
}

func (h Handler) DescribeFamilyHandler(ctx context.Context, family string) (httptransport.FamilyDTO, error) {
	logger := application.ResolveLogger(h.Logger)
	summary, err := h.DescribeFamily.Execute(family)
	if err != nil {
		logger.Debug("family lookup failed",
			"event", "lifecycle_family_lookup_failed",
			"module", "document-workflow/lifecycle-service",
			"layer", "transport",
			"family", family,
		)
		return httptransport.FamilyDTO{}, err
	}
	return mapFamily(summary), nil
}

// validateRequest runs struct tag validation and folds failures into
// ErrInvalidDocumentInput so the transport maps them to 400.
func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fields := make([]string, 0, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fieldErr.Field()), fieldErr.Tag()))
			}
			return fmt.Errorf("%w: %s", domainerrors.ErrInvalidDocumentInput, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", domainerrors.ErrInvalidDocumentInput, err)
	}
	return nil
}

func mapDocument(item entities.Document) httptransport.DocumentDTO {
	payload := item.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return httptransport.DocumentDTO{
		DocumentID: item.DocumentID,
		SequenceID: item.SequenceID,
		Family:     item.Family,
		Year:       item.Year,
		Sequence:   item.Sequence,
		Status:     item.Status,
		Version:    item.Version,
		Payload:    payload,
		CreatedBy:  item.CreatedBy,
		CreatedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapTransition(item entities.TransitionLogEntry) httptransport.TransitionLogDTO {
	return httptransport.TransitionLogDTO{
		EntryID:    item.EntryID,
		DocumentID: item.DocumentID,
		SequenceID: item.SequenceID,
		Family:     item.DocumentFamily,
		FromState:  item.FromState,
		ToState:    item.ToState,
		Actor:      item.Actor,
		Comment:    item.Comment,
		CreatedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func mapFamily(item queries.FamilySummary) httptransport.FamilyDTO {
	states := make([]httptransport.StateDTO, 0, len(item.States))
	for _, state := range item.States {
		states = append(states, httptransport.StateDTO{
			Name:     state.Name,
			Label:    state.Label,
			Next:     append([]string{}, state.Next...),
			Terminal: state.Terminal,
		})
	}
	return httptransport.FamilyDTO{
		Key:          item.Key,
		Prefix:       item.Prefix,
		Label:        item.Label,
		InitialState: item.InitialState,
		States:       states,
	}
}
