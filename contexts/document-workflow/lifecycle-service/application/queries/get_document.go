package queries

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	application "vihadmin/contexts/document-workflow/lifecycle-service/application"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/statemachine"
	"vihadmin/contexts/document-workflow/lifecycle-service/ports"
)

// DocumentView is a document plus what its graph allows next.
type DocumentView struct {
	Document        entities.Document
	LegalNextStates []string
	Terminal        bool
}

type GetDocumentUseCase struct {
	Documents ports.DocumentRepository
	Registry  *statemachine.Registry
	Logger    *slog.Logger
}

// Execute resolves a document by id, or by sequence id when the value is shaped
// like one.
func (uc GetDocumentUseCase) Execute(ctx context.Context, reference string) (DocumentView, error) {
	logger := application.ResolveLogger(uc.Logger)
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return DocumentView{}, domainerrors.ErrInvalidDocumentInput
	}

	document, err := uc.Documents.GetDocument(ctx, reference)
	if errors.Is(err, domainerrors.ErrDocumentNotFound) && isSequenceReference(reference) {
		document, err = uc.Documents.GetDocumentBySequenceID(ctx, reference)
	}
	if err != nil {
		return DocumentView{}, err
	}

	view := DocumentView{Document: document, LegalNextStates: []string{}}
	graph, err := uc.Registry.Graph(document.Family)
	if err != nil {
		logger.Warn("document family no longer configured",
			"event", "lifecycle_document_family_missing",
			"module", "document-workflow/lifecycle-service",
			"layer", "application",
			"document_id", document.DocumentID,
			"family", document.Family,
		)
		return view, nil
	}
	view.LegalNextStates = graph.LegalNextStates(document.Status)
	view.Terminal = graph.IsTerminal(document.Status)
	return view, nil
}

func isSequenceReference(value string) bool {
	return strings.Count(value, "-") >= 2 && len(value) >= len("X-0000-0000")
}
