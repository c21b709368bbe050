package queries

import (
	"context"
	"strings"

	"vihadmin/contexts/document-workflow/lifecycle-service/application/audit"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"
)

type ListTransitionsUseCase struct {
	Documents ports.DocumentRepository
	Log       ports.TransitionLog
	Audit     audit.Trail
}

// Execute returns the audit history of an existing document, oldest first.
func (uc ListTransitionsUseCase) Execute(ctx context.Context, documentID string) ([]entities.TransitionLogEntry, error) {
	document, err := uc.Documents.GetDocument(ctx, strings.TrimSpace(documentID))
	if err != nil {
		return nil, err
	}
	return uc.Audit.History(ctx, uc.Log, document.DocumentID)
}
