package queries

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	application "vihadmin/contexts/document-workflow/lifecycle-service/application"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/statemachine"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type ListDocumentsQuery struct {
	Family string
	Status string
	Year   int
	Limit  int
}

type ListDocumentsUseCase struct {
	Documents ports.DocumentRepository
	Registry  *statemachine.Registry
	Logger    *slog.Logger
}

func (uc ListDocumentsUseCase) Execute(ctx context.Context, query ListDocumentsQuery) ([]entities.Document, error) {
	logger := application.ResolveLogger(uc.Logger)
	filter := ports.DocumentFilter{
		Family: strings.TrimSpace(query.Family),
		Status: strings.TrimSpace(query.Status),
		Year:   query.Year,
		Limit:  query.Limit,
	}
	if filter.Family != "" {
		if _, err := uc.Registry.Graph(filter.Family); err != nil {
			return nil, err
		}
	}
	if filter.Year != 0 && !statemachine.ValidSequenceYear(filter.Year) {
		return nil, fmt.Errorf("%w: year %d out of range", domainerrors.ErrInvalidDocumentInput, filter.Year)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	items, err := uc.Documents.ListDocuments(ctx, filter)
	if err != nil {
		logger.Error("document list failed",
			"event", "lifecycle_document_list_failed",
			"module", "document-workflow/lifecycle-service",
			"layer", "application",
			"family", filter.Family,
			"error", err.Error(),
		)
		return nil, err
	}
	return items, nil
}
