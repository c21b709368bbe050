package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	lifecycleservice "vihadmin/contexts/document-workflow/lifecycle-service"
	"vihadmin/contexts/document-workflow/lifecycle-service/adapters/catalog"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
	lifecyclehttp "vihadmin/contexts/document-workflow/lifecycle-service/transport/http"

	"github.com/moogar0880/problems"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	_ "vihadmin/internal/platform/httpserver/docs"
)

const problemContentType = "application/problem+json"

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	lifecycle lifecycleservice.Module
	gatherer  prometheus.Gatherer
	ready     func(context.Context) error
}

type Option func(*Server)

// WithGatherer exposes gatherer on /metrics.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = gatherer }
}

// WithReadiness makes /healthz report 503 while check fails.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) { s.ready = check }
}

func New(lifecycle lifecycleservice.Module, logger *slog.Logger, addr string, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		lifecycle: lifecycle,
		gatherer:  prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.logger.Info("http server stopping",
			"event", "http_server_stopping",
			"module", "internal/platform/httpserver",
			"layer", "platform",
		)
		return server.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/lifecycle/v1/families", s.handleListFamilies)
	s.mux.HandleFunc("GET /api/lifecycle/v1/families/{family}", s.handleDescribeFamily)
	s.mux.HandleFunc("GET /api/lifecycle/v1/families/{family}/graph", s.handleFamilyGraph)

	s.mux.HandleFunc("POST /api/lifecycle/v1/documents", s.handleCreateDocument)
	s.mux.HandleFunc("GET /api/lifecycle/v1/documents", s.handleListDocuments)
	s.mux.HandleFunc("GET /api/lifecycle/v1/documents/{reference}", s.handleGetDocument)
	s.mux.HandleFunc("POST /api/lifecycle/v1/documents/{reference}/transitions", s.handleTransitionDocument)
	s.mux.HandleFunc("GET /api/lifecycle/v1/documents/{reference}/transitions", s.handleListTransitions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeProblem(w, r, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFamilies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.lifecycle.Handler.ListFamiliesHandler(r.Context()))
}

func (s *Server) handleDescribeFamily(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lifecycle.Handler.DescribeFamilyHandler(r.Context(), r.PathValue("family"))
	if err != nil {
		if errors.Is(err, domainerrors.ErrUnknownFamily) {
			writeProblem(w, r, http.StatusNotFound, "unknown_family", err.Error())
			return
		}
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFamilyGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := s.lifecycle.Registry.Graph(r.PathValue("family"))
	if err != nil {
		writeProblem(w, r, http.StatusNotFound, "unknown_family", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(catalog.RenderMermaid(graph)))
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req lifecyclehttp.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.lifecycle.Handler.CreateDocumentHandler(
		r.Context(),
		strings.TrimSpace(r.Header.Get("X-User-Id")),
		strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		req,
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	year, err := optionalInt(query.Get("year"))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_year", "year must be an integer")
		return
	}
	limit, err := optionalInt(query.Get("limit"))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
		return
	}

	resp, err := s.lifecycle.Handler.ListDocumentsHandler(r.Context(), query.Get("family"), query.Get("status"), year, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lifecycle.Handler.GetDocumentHandler(r.Context(), r.PathValue("reference"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransitionDocument(w http.ResponseWriter, r *http.Request) {
	var req lifecyclehttp.TransitionDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.lifecycle.Handler.TransitionDocumentHandler(
		r.Context(),
		strings.TrimSpace(r.Header.Get("X-User-Id")),
		r.PathValue("reference"),
		req,
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTransitions(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lifecycle.Handler.ListTransitionsHandler(r.Context(), r.PathValue("reference"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrInvalidDocumentInput):
		writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domainerrors.ErrActorRequired):
		writeProblem(w, r, http.StatusBadRequest, "actor_required", err.Error())
	case errors.Is(err, domainerrors.ErrUnknownFamily):
		writeProblem(w, r, http.StatusBadRequest, "unknown_family", err.Error())
	case errors.Is(err, domainerrors.ErrDocumentNotFound):
		writeProblem(w, r, http.StatusNotFound, "document_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrConcurrentModification):
		writeProblem(w, r, http.StatusConflict, "concurrent_modification", err.Error())
	case errors.Is(err, domainerrors.ErrIdempotencyKeyConflict):
		writeProblem(w, r, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, domainerrors.ErrIllegalTransition):
		writeProblem(w, r, http.StatusUnprocessableEntity, "illegal_transition", err.Error())
	case errors.Is(err, domainerrors.ErrAllocationFailed):
		s.logger.Error("sequence allocation unavailable",
			"event", "http_allocation_unavailable",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeProblem(w, r, http.StatusServiceUnavailable, "allocation_failed", err.Error())
	default:
		s.logger.Error("unhandled lifecycle error",
			"event", "http_internal_error",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeProblem(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType string, detail string) {
	problem := problems.NewStatusProblem(status).
		WithInstance(r.URL.Path).
		WithType(problemType).
		WithDetail(detail)

	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
