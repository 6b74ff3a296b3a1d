package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/chunking"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-ingest/internal/core/services"
)

const testQdrantURL = "http://qdrant.test:6333"

// testEnv is a server wired to real services over in-memory mocks
type testEnv struct {
	registry *mocks.MockIndexRegistry
	store    *mocks.MockVectorStore
	dialer   *mocks.MockVectorStoreDialer
	embedder *mocks.MockEmbeddingService
	queue    *mocks.MockTaskQueue
	lock     *mocks.MockDistributedLock
	server   *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, domain.Connection{URL: testQdrantURL}, 0)
}

func newTestEnvWith(t *testing.T, defaultConn domain.Connection, maxUpload int64) *testEnv {
	t.Helper()

	env := &testEnv{
		registry: mocks.NewMockIndexRegistry(),
		store:    mocks.NewMockVectorStore(),
		embedder: mocks.NewMockEmbeddingService(),
		queue:    mocks.NewMockTaskQueue(),
		lock:     mocks.NewMockDistributedLock(),
	}
	env.dialer = mocks.NewMockVectorStoreDialer(env.store)
	locker := services.NewIndexLocker(services.IndexLockerConfig{Lock: env.lock, Wait: 50 * time.Millisecond})

	svc := Services{
		Ingestion: services.NewIngestionService(services.IngestionConfig{
			Registry:          env.registry,
			Extractors:        mocks.NewMockExtractorRegistry(mocks.NewMockExtractor("txt", "md")),
			Chunker:           chunking.NewChunker(),
			Embedder:          env.embedder,
			Dialer:            env.dialer,
			Locker:            locker,
			DefaultConnection: defaultConn,
			MaxUploadBytes:    maxUpload,
		}),
		Search: services.NewSearchService(services.SearchConfig{
			Registry:          env.registry,
			Embedder:          env.embedder,
			Dialer:            env.dialer,
			DefaultConnection: defaultConn,
		}),
		Indexes: services.NewIndexService(services.IndexConfig{
			Registry:          env.registry,
			Embedder:          env.embedder,
			Dialer:            env.dialer,
			Locker:            locker,
			DefaultConnection: defaultConn,
		}),
		Connections: services.NewConnectionService(env.dialer, defaultConn, nil),
		Reconcile: services.NewReconcileService(services.ReconcileConfig{
			Registry:          env.registry,
			Dialer:            env.dialer,
			Locker:            locker,
			TaskQueue:         env.queue,
			DefaultConnection: defaultConn,
		}),
	}

	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	env.server = NewServer(cfg, svc, map[string]Pinger{
		"registry": env.registry,
		"lock":     env.lock,
		"queue":    env.queue,
	})
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doJSON(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

// upload posts a multipart upload and returns the response
func (e *testEnv) upload(t *testing.T, filename, content, metadata string, extra map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = part.Write([]byte(content))
	}
	if metadata != "" {
		_ = mw.WriteField("metadata", metadata)
	}
	for k, v := range extra {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

func metadataJSON(index string, size, overlap int) string {
	return fmt.Sprintf(`{"index_name":%q,"chunk_size":%d,"chunk_overlap":%d,"chunking_method":"recursive"}`, index, size, overlap)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, category string) ErrorResponse {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Category != category {
		t.Errorf("expected category %q, got %q (%s)", category, resp.Category, resp.Error)
	}
	return resp
}

var fiftyChars = strings.Repeat("abcdefghij", 5)

// Health

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/healthz"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, rr.Code)
		}
		if resp := decode[StatusResponse](t, rr); resp.Status != "ok" {
			t.Errorf("%s: expected status ok, got %s", path, resp.Status)
		}
	}
}

func TestReadyHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decode[ReadyResponse](t, rr)
	if resp.Status != "ready" {
		t.Errorf("expected ready, got %s", resp.Status)
	}
	for _, name := range []string{"registry", "lock", "queue"} {
		if resp.Checks[name] != "ok" {
			t.Errorf("expected check %s ok, got %q", name, resp.Checks[name])
		}
	}
}

func TestReadyHandler_BackendDown(t *testing.T) {
	env := newTestEnv(t)
	env.queue.PingErr = errors.New("redis: connection refused")

	rr := env.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	resp := decode[ReadyResponse](t, rr)
	if resp.Status != "not ready" {
		t.Errorf("expected not ready, got %s", resp.Status)
	}
	if resp.Checks["queue"] != "redis: connection refused" {
		t.Errorf("expected queue error, got %q", resp.Checks["queue"])
	}
	if resp.Checks["registry"] != "ok" {
		t.Errorf("expected registry ok, got %q", resp.Checks["registry"])
	}
}

func TestVersionHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/version", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if resp := decode[VersionResponse](t, rr); resp.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", resp.Version)
	}
}

func TestSwaggerHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var doc struct {
		Swagger string                    `json:"swagger"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
		t.Fatalf("swagger document is not valid JSON: %v", err)
	}
	if doc.Swagger != "2.0" {
		t.Errorf("expected swagger 2.0, got %q", doc.Swagger)
	}
	for _, path := range []string{"/upload", "/search/{name}", "/indexes", "/indexes/{name}/reconcile", "/tasks/{id}"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("expected path %s in swagger document", path)
		}
	}
}

// Upload

func TestHandleUpload_Success(t *testing.T) {
	env := newTestEnv(t)

	rr := env.upload(t, "notes.txt", fiftyChars, metadataJSON("handbook", 20, 5), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	result := decode[domain.UploadResult](t, rr)
	if result.ChunksProcessed != 4 {
		t.Errorf("expected 4 chunks, got %d", result.ChunksProcessed)
	}
	if result.Filename != "notes.txt" {
		t.Errorf("expected filename notes.txt, got %s", result.Filename)
	}
	if result.Status != domain.StatusSuccess {
		t.Errorf("expected status success, got %s", result.Status)
	}
	if result.DocumentID == "" {
		t.Error("expected a document id")
	}
	if got := env.store.PointCount("handbook"); got != 4 {
		t.Errorf("expected 4 points stored, got %d", got)
	}
}

func TestHandleUpload_ConnectionFromForm(t *testing.T) {
	env := newTestEnvWith(t, domain.Connection{}, 0)

	rr := env.upload(t, "notes.txt", fiftyChars, metadataJSON("handbook", 20, 5), map[string]string{
		"qdrant_url":     "http://other:6333",
		"qdrant_api_key": "secret",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	dialed := env.dialer.Dialed()
	if len(dialed) == 0 {
		t.Fatal("expected a dial")
	}
	if dialed[0].URL != "http://other:6333" || dialed[0].APIKey != "secret" {
		t.Errorf("expected form connection, got %+v", dialed[0])
	}
}

func TestHandleUpload_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		metadata string
		status   int
		category string
		stage    string
	}{
		{"unsupported type", "tool.exe", "MZ", metadataJSON("handbook", 20, 5), http.StatusBadRequest, domain.CategoryValidation, "validating"},
		{"missing file", "", "", metadataJSON("handbook", 20, 5), http.StatusBadRequest, domain.CategoryValidation, ""},
		{"missing metadata", "notes.txt", fiftyChars, "", http.StatusBadRequest, domain.CategoryValidation, ""},
		{"malformed metadata", "notes.txt", fiftyChars, "{not json", http.StatusBadRequest, domain.CategoryValidation, ""},
		{"overlap not below size", "notes.txt", fiftyChars, metadataJSON("handbook", 10, 10), http.StatusBadRequest, domain.CategoryValidation, "validating"},
		{"empty document", "empty.txt", "   ", metadataJSON("handbook", 20, 5), http.StatusUnprocessableEntity, domain.CategoryExtraction, "extracting"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rr := env.upload(t, tt.filename, tt.content, tt.metadata, nil)
			resp := expectError(t, rr, tt.status, tt.category)
			if resp.Stage != tt.stage {
				t.Errorf("expected stage %q, got %q", tt.stage, resp.Stage)
			}
			if env.registry.DocumentCount() != 0 {
				t.Error("expected no document to be recorded")
			}
		})
	}
}

func TestHandleUpload_TooLarge(t *testing.T) {
	env := newTestEnvWith(t, domain.Connection{URL: testQdrantURL}, 10)

	rr := env.upload(t, "notes.txt", fiftyChars, metadataJSON("handbook", 20, 5), nil)
	expectError(t, rr, http.StatusBadRequest, domain.CategoryValidation)
}

func TestHandleUpload_EmbeddingFailure(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.SetError(errors.New("provider unavailable"))

	rr := env.upload(t, "notes.txt", fiftyChars, metadataJSON("handbook", 20, 5), nil)
	resp := expectError(t, rr, http.StatusBadGateway, domain.CategoryEmbedding)
	if resp.Stage != "embedding" {
		t.Errorf("expected stage embedding, got %q", resp.Stage)
	}
}

func TestHandleUpload_IndexBusy(t *testing.T) {
	env := newTestEnv(t)
	env.lock.Hold("index:handbook", time.Minute)

	rr := env.upload(t, "notes.txt", fiftyChars, metadataJSON("handbook", 20, 5), nil)
	expectError(t, rr, http.StatusConflict, domain.CategoryConflict)
}

// Search

func TestHandleSearch_Success(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.upload(t, "notes.txt", fiftyChars, metadataJSON("handbook", 20, 5), nil); rr.Code != http.StatusOK {
		t.Fatalf("upload failed: %s", rr.Body.String())
	}

	rr := env.doJSON(http.MethodPost, "/search/handbook", map[string]any{"query": fiftyChars[:20], "limit": 2})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decode[domain.SearchResponse](t, rr)
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Text != fiftyChars[:20] {
		t.Errorf("expected exact chunk first, got %q", resp.Results[0].Text)
	}
	if resp.Results[0].Score < resp.Results[1].Score {
		t.Error("expected results ordered by descending score")
	}
	if resp.Results[0].Filename != "notes.txt" || resp.Results[0].DocumentID == "" {
		t.Errorf("expected projected payload fields, got %+v", resp.Results[0])
	}
}

func TestHandleSearch_EmptyIndex(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.doJSON(http.MethodPost, "/indexes", CreateIndexRequest{Name: "empty"}); rr.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rr.Code, rr.Body.String())
	}

	rr := env.doJSON(http.MethodPost, "/search/empty", map[string]any{"query": "anything"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decode[domain.SearchResponse](t, rr); len(resp.Results) != 0 {
		t.Errorf("expected no results, got %d", len(resp.Results))
	}
}

func TestHandleSearch_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "notes.txt", fiftyChars, metadataJSON("handbook", 20, 5), nil)

	t.Run("unknown index", func(t *testing.T) {
		rr := env.doJSON(http.MethodPost, "/search/missing", map[string]any{"query": "x"})
		expectError(t, rr, http.StatusNotFound, domain.CategoryNotFound)
	})

	t.Run("empty query", func(t *testing.T) {
		rr := env.doJSON(http.MethodPost, "/search/handbook", map[string]any{"query": "  "})
		expectError(t, rr, http.StatusBadRequest, domain.CategoryValidation)
	})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/search/handbook", strings.NewReader("{"))
		expectError(t, env.do(req), http.StatusBadRequest, domain.CategoryValidation)
	})

	t.Run("vector store failure", func(t *testing.T) {
		env.store.SearchErr = errors.New("qdrant: 500")
		defer func() { env.store.SearchErr = nil }()
		rr := env.doJSON(http.MethodPost, "/search/handbook", map[string]any{"query": "x"})
		expectError(t, rr, http.StatusBadGateway, domain.CategorySearch)
	})
}

// Indexes

func TestHandleCreateIndex(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(http.MethodPost, "/indexes", CreateIndexRequest{Name: "handbook", Description: "HR"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	summary := decode[domain.IndexSummary](t, rr)
	if summary.Name != "handbook" || summary.Description != "HR" || summary.DocumentCount != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if !env.store.HasCollection("handbook") {
		t.Error("expected collection to be created")
	}

	rr = env.doJSON(http.MethodPost, "/indexes", CreateIndexRequest{Name: "handbook"})
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200 for existing index, got %d", rr.Code)
	}
}

func TestHandleCreateIndex_Invalid(t *testing.T) {
	env := newTestEnv(t)

	expectError(t, env.doJSON(http.MethodPost, "/indexes", CreateIndexRequest{Name: ""}),
		http.StatusBadRequest, domain.CategoryValidation)

	req := httptest.NewRequest(http.MethodPost, "/indexes", strings.NewReader("nope"))
	expectError(t, env.do(req), http.StatusBadRequest, domain.CategoryValidation)
}

func TestHandleListIndexes(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/indexes", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := decode[[]domain.IndexSummary](t, rr); len(got) != 0 {
		t.Errorf("expected no indexes, got %d", len(got))
	}

	env.upload(t, "a.txt", fiftyChars, metadataJSON("beta", 20, 5), nil)
	env.upload(t, "b.txt", fiftyChars, metadataJSON("alpha", 20, 5), nil)

	rr = env.do(httptest.NewRequest(http.MethodGet, "/indexes", nil))
	got := decode[[]domain.IndexSummary](t, rr)
	if len(got) != 2 {
		t.Fatalf("expected 2 indexes, got %d", len(got))
	}
	if got[0].Name != "alpha" || got[0].DocumentCount != 1 {
		t.Errorf("unexpected first index: %+v", got[0])
	}
}

func TestHandleDocuments(t *testing.T) {
	env := newTestEnv(t)
	result := decode[domain.UploadResult](t, env.upload(t, "notes.txt", fiftyChars, metadataJSON("handbook", 20, 5), nil))

	rr := env.do(httptest.NewRequest(http.MethodGet, "/indexes/handbook/documents", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	docs := decode[[]domain.Document](t, rr)
	if len(docs) != 1 || docs[0].ID != result.DocumentID || docs[0].ChunkCount != 4 {
		t.Fatalf("unexpected documents: %+v", docs)
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/indexes/handbook/documents/"+result.DocumentID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if doc := decode[domain.Document](t, rr); doc.Filename != "notes.txt" || doc.FileType != "txt" {
		t.Errorf("unexpected document: %+v", doc)
	}

	rr = env.do(httptest.NewRequest(http.MethodDelete, "/indexes/handbook/documents/"+result.DocumentID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if env.store.PointCount("handbook") != 0 {
		t.Error("expected document points to be deleted")
	}

	expectError(t, env.do(httptest.NewRequest(http.MethodGet, "/indexes/handbook/documents/"+result.DocumentID, nil)),
		http.StatusNotFound, domain.CategoryNotFound)
	expectError(t, env.do(httptest.NewRequest(http.MethodGet, "/indexes/missing/documents", nil)),
		http.StatusNotFound, domain.CategoryNotFound)
}

func TestHandleDeleteIndex(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		env.upload(t, name, strings.Repeat("x", 30), metadataJSON("handbook", 20, 5), nil)
	}

	rr := env.do(httptest.NewRequest(http.MethodDelete, "/indexes/handbook", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	result := decode[domain.DeleteIndexResult](t, rr)
	if result.DocumentsRemoved != 3 || result.RemoteCleanup != domain.RemoteCleanupOK {
		t.Errorf("unexpected result: %+v", result)
	}
	if env.store.HasCollection("handbook") {
		t.Error("expected collection to be dropped")
	}

	expectError(t, env.do(httptest.NewRequest(http.MethodDelete, "/indexes/handbook", nil)),
		http.StatusNotFound, domain.CategoryNotFound)
}

func TestHandleDeleteIndex_RemoteFailureReported(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "a.txt", fiftyChars, metadataJSON("handbook", 20, 5), nil)
	env.store.DeleteCollectionErr = errors.New("qdrant: timeout")

	rr := env.do(httptest.NewRequest(http.MethodDelete, "/indexes/handbook", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	result := decode[domain.DeleteIndexResult](t, rr)
	if result.RemoteCleanup != domain.RemoteCleanupFailed || result.RemoteError == "" {
		t.Errorf("expected remote failure to be reported, got %+v", result)
	}
}

// Reconcile and tasks

func TestHandleReconcile_Sync(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "a.txt", fiftyChars, metadataJSON("handbook", 20, 5), nil)
	env.store.PutPoint("handbook", domain.Point{
		ID:      "orphan",
		Vector:  make([]float32, env.embedder.Dimensions()),
		Payload: map[string]any{domain.PayloadDocumentID: "ghost"},
	})

	rr := env.do(httptest.NewRequest(http.MethodPost, "/indexes/handbook/reconcile", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[domain.ReconcileResponse](t, rr)
	if resp.Status != services.ReconcileStatusCompleted || resp.Report == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Report.OrphanPointsDeleted != 1 || resp.Report.PointsScanned != 5 {
		t.Errorf("unexpected report: %+v", resp.Report)
	}
}

func TestHandleReconcile_AsyncAndTask(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "a.txt", fiftyChars, metadataJSON("handbook", 20, 5), nil)

	rr := env.do(httptest.NewRequest(http.MethodPost, "/indexes/handbook/reconcile?async=true", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[domain.ReconcileResponse](t, rr)
	if resp.Status != services.ReconcileStatusQueued || resp.TaskID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/tasks/"+resp.TaskID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	task := decode[domain.Task](t, rr)
	if task.Type != domain.TaskTypeReconcileIndex || task.Payload["index_name"] != "handbook" {
		t.Errorf("unexpected task: %+v", task)
	}

	expectError(t, env.do(httptest.NewRequest(http.MethodGet, "/tasks/unknown", nil)),
		http.StatusNotFound, domain.CategoryNotFound)
}

func TestHandleReconcile_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "a.txt", fiftyChars, metadataJSON("handbook", 20, 5), nil)

	expectError(t, env.do(httptest.NewRequest(http.MethodPost, "/indexes/missing/reconcile", nil)),
		http.StatusNotFound, domain.CategoryNotFound)
	expectError(t, env.do(httptest.NewRequest(http.MethodPost, "/indexes/handbook/reconcile?async=maybe", nil)),
		http.StatusBadRequest, domain.CategoryValidation)
	expectError(t, env.do(httptest.NewRequest(http.MethodPost, "/indexes/handbook/reconcile?async=true&qdrant_url=http://elsewhere:6333", nil)),
		http.StatusBadRequest, domain.CategoryValidation)
}

// Connections

func TestHandleTestConnection(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(http.MethodPost, "/qdrant/test-connection", ConnectionRequest{URL: "http://custom:6333"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := env.dialer.Dialed(); len(got) != 1 || got[0].URL != "http://custom:6333" {
		t.Errorf("expected request connection to be dialed, got %+v", got)
	}

	env.dialer.DialFn = func(conn domain.Connection) error { return errors.New("connection refused") }
	expectError(t, env.doJSON(http.MethodPost, "/qdrant/test-connection", ConnectionRequest{URL: "http://custom:6333"}),
		http.StatusBadGateway, domain.CategoryConnection)
}

func TestHandleTestConnection_NoURL(t *testing.T) {
	env := newTestEnvWith(t, domain.Connection{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/qdrant/test-connection", nil)
	expectError(t, env.do(req), http.StatusBadRequest, domain.CategoryValidation)
}

func TestHandleListCollections(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "a.txt", fiftyChars, metadataJSON("zeta", 20, 5), nil)
	env.upload(t, "b.txt", fiftyChars, metadataJSON("alpha", 20, 5), nil)

	rr := env.doJSON(http.MethodPost, "/qdrant/collections", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[CollectionsResponse](t, rr)
	if len(resp.Collections) != 2 || resp.Collections[0] != "alpha" {
		t.Errorf("unexpected collections: %v", resp.Collections)
	}
}

// Helpers

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		domain.CategoryValidation:     http.StatusBadRequest,
		domain.CategoryExtraction:     http.StatusUnprocessableEntity,
		domain.CategoryNotFound:       http.StatusNotFound,
		domain.CategoryConflict:       http.StatusConflict,
		domain.CategoryEmbedding:      http.StatusBadGateway,
		domain.CategoryConnection:     http.StatusBadGateway,
		domain.CategorySearch:         http.StatusBadGateway,
		domain.CategoryPartialFailure: http.StatusBadGateway,
		domain.CategoryVectorStore:    http.StatusBadGateway,
		domain.CategoryInternal:       http.StatusInternalServerError,
		"something-else":              http.StatusInternalServerError,
	}
	for category, want := range tests {
		if got := statusFor(category); got != want {
			t.Errorf("statusFor(%q) = %d, want %d", category, got, want)
		}
	}
}

func TestWriteServiceError(t *testing.T) {
	t.Run("internal detail hidden", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeServiceError(rr, errors.New("pq: password authentication failed"))

		resp := expectError(t, rr, http.StatusInternalServerError, domain.CategoryInternal)
		if resp.Error != "internal server error" {
			t.Errorf("expected internal detail to be hidden, got %q", resp.Error)
		}
	})

	t.Run("stage reported", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeServiceError(rr, &domain.IngestionError{
			Stage: domain.StageUpserting,
			Err:   fmt.Errorf("%w: points rejected", domain.ErrVectorStore),
		})

		resp := expectError(t, rr, http.StatusBadGateway, domain.CategoryVectorStore)
		if resp.Stage != "upserting" {
			t.Errorf("expected stage upserting, got %q", resp.Stage)
		}
		if !strings.Contains(resp.Error, "points rejected") {
			t.Errorf("expected cause in message, got %q", resp.Error)
		}
	})

	t.Run("partial failure", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeServiceError(rr, fmt.Errorf("%w: registry write failed", domain.ErrPartialFailure))
		expectError(t, rr, http.StatusBadGateway, domain.CategoryPartialFailure)
	})
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusCreated, map[string]string{"key": "value"})

	if rr.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	if got := decode[map[string]string](t, rr); got["key"] != "value" {
		t.Errorf("expected key=value, got %v", got)
	}
}

func TestServer_StartStop(t *testing.T) {
	env := newTestEnv(t)
	env.server.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
