package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	lifecycleservice "vihadmin/contexts/document-workflow/lifecycle-service"
	lifecyclehttp "vihadmin/contexts/document-workflow/lifecycle-service/transport/http"

	"github.com/neilotoole/slogt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	logger := slogt.New(t)
	module := lifecycleservice.NewInMemoryModule(nil, logger)
	opts = append([]Option{WithGatherer(prometheus.NewRegistry())}, opts...)
	server := httptest.NewServer(New(module, logger, ":0", opts...).Handler())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method string, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type problemBody struct {
	Type     string `json:"type"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}

func TestContractDocumentOverHTTP(t *testing.T) {
	server := newTestServer(t)
	base := server.URL + "/api/lifecycle/v1/documents"

	resp := doJSON(t, http.MethodPost, base, lifecyclehttp.CreateDocumentRequest{
		Family:  "CONTRACT",
		Year:    2025,
		Payload: json.RawMessage(`{"counterparty":"ACME"}`),
	}, map[string]string{"X-User-Id": "user-1", "Idempotency-Key": "contract-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[lifecyclehttp.CreateDocumentResponse](t, resp)
	assert.Equal(t, "VIH-CON-2025-0001", created.Document.SequenceID)
	assert.Equal(t, "draft", created.Document.Status)
	assert.JSONEq(t, `{"counterparty":"ACME"}`, string(created.Document.Payload))

	replay := doJSON(t, http.MethodPost, base, lifecyclehttp.CreateDocumentRequest{
		Family:  "CONTRACT",
		Year:    2025,
		Payload: json.RawMessage(`{"counterparty":"ACME"}`),
	}, map[string]string{"X-User-Id": "user-1", "Idempotency-Key": "contract-1"})
	require.Equal(t, http.StatusOK, replay.StatusCode)
	assert.True(t, decode[lifecyclehttp.CreateDocumentResponse](t, replay).Replayed)

	moved := doJSON(t, http.MethodPost, base+"/VIH-CON-2025-0001/transitions", lifecyclehttp.TransitionDocumentRequest{
		TargetState: "pending_review",
		Comment:     "ready",
	}, map[string]string{"X-User-Id": "alice"})
	require.Equal(t, http.StatusOK, moved.StatusCode)
	transition := decode[lifecyclehttp.TransitionDocumentResponse](t, moved)
	assert.Equal(t, "pending_review", transition.Document.Status)
	assert.Equal(t, "alice", transition.Entry.Actor)

	illegal := doJSON(t, http.MethodPost, base+"/VIH-CON-2025-0001/transitions", lifecyclehttp.TransitionDocumentRequest{
		TargetState: "executing",
	}, map[string]string{"X-User-Id": "alice"})
	require.Equal(t, http.StatusUnprocessableEntity, illegal.StatusCode)
	assert.Equal(t, problemContentType, illegal.Header.Get("Content-Type"))
	problem := decode[problemBody](t, illegal)
	assert.Equal(t, "illegal_transition", problem.Type)
	assert.Contains(t, problem.Detail, `"pending_review" -> "executing"`)

	stale := doJSON(t, http.MethodPost, base+"/VIH-CON-2025-0001/transitions", lifecyclehttp.TransitionDocumentRequest{
		TargetState:     "reviewing",
		ExpectedVersion: 1,
	}, map[string]string{"X-User-Id": "alice"})
	require.Equal(t, http.StatusConflict, stale.StatusCode)

	history := doJSON(t, http.MethodGet, base+"/VIH-CON-2025-0001/transitions", nil, nil)
	require.Equal(t, http.StatusOK, history.StatusCode)
	entries := decode[lifecyclehttp.ListTransitionsResponse](t, history)
	require.Len(t, entries.Items, 1)
	assert.Equal(t, "draft", entries.Items[0].FromState)

	listed := doJSON(t, http.MethodGet, base+"?family=CONTRACT&status=pending_review&year=2025", nil, nil)
	require.Equal(t, http.StatusOK, listed.StatusCode)
	assert.Len(t, decode[lifecyclehttp.ListDocumentsResponse](t, listed).Items, 1)
}

func TestErrorMapping(t *testing.T) {
	server := newTestServer(t)
	base := server.URL + "/api/lifecycle/v1"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{name: "missing year", method: http.MethodPost, path: "/documents", body: map[string]any{"family": "CONTRACT"}, status: http.StatusBadRequest, kind: "validation_error"},
		{name: "unknown family", method: http.MethodPost, path: "/documents", body: map[string]any{"family": "INVOICE", "year": 2025}, status: http.StatusBadRequest, kind: "unknown_family"},
		{name: "document not found", method: http.MethodGet, path: "/documents/OPP-2025-0001", status: http.StatusNotFound, kind: "document_not_found"},
		{name: "transition without actor", method: http.MethodPost, path: "/documents/doc-1/transitions", body: map[string]any{"target_state": "won"}, status: http.StatusBadRequest, kind: "validation_error"},
		{name: "bad year filter", method: http.MethodGet, path: "/documents?year=abc", status: http.StatusBadRequest, kind: "invalid_year"},
		{name: "unknown family lookup", method: http.MethodGet, path: "/families/INVOICE", status: http.StatusNotFound, kind: "unknown_family"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, tt.method, base+tt.path, tt.body, nil)
			require.Equal(t, tt.status, resp.StatusCode)
			problem := decode[problemBody](t, resp)
			assert.Equal(t, tt.kind, problem.Type)
			assert.Equal(t, tt.status, problem.Status)
		})
	}

	raw, err := http.Post(base+"/documents", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestFamilyRoutes(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/lifecycle/v1/families", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[lifecyclehttp.ListFamiliesResponse](t, resp).Items, 9)

	graph := doJSON(t, http.MethodGet, server.URL+"/api/lifecycle/v1/families/OPPORTUNITY/graph", nil, nil)
	require.Equal(t, http.StatusOK, graph.StatusCode)
	body, err := io.ReadAll(graph.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "stateDiagram-v2")
	assert.Contains(t, string(body), "negotiation --> won")
}

func TestHealthAndMetrics(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metrics := doJSON(t, http.MethodGet, server.URL+"/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, metrics.StatusCode)

	failing := newTestServer(t, WithReadiness(func(context.Context) error { return errors.New("database unreachable") }))
	notReady := doJSON(t, http.MethodGet, failing.URL+"/healthz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, notReady.StatusCode)
}
