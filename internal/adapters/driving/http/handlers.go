package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/swaggo/swag"

	// Registers the OpenAPI document served at /swagger/doc.json
	_ "github.com/custodia-labs/sercha-ingest/docs"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// multipart overhead allowed on top of the file size limit
const multipartSlack = 1 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error    string `json:"error" example:"unsupported file type: exe"`
	Category string `json:"category" example:"validation"`
	Stage    string `json:"stage,omitempty" example:"validating"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// MessageResponse is a status with a human readable message
// @Description Status with message
type MessageResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"Connection successful"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ReadyResponse reports each backend check
// @Description Readiness status per backend
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// ConnectionRequest names a vector store endpoint
// @Description Qdrant endpoint and optional API key
type ConnectionRequest struct {
	URL    string `json:"url" example:"http://localhost:6333"`
	APIKey string `json:"api_key,omitempty"`
}

// CollectionsResponse lists vector store collections
// @Description Collection names
type CollectionsResponse struct {
	Collections []string `json:"collections"`
}

// CreateIndexRequest is the body of POST /indexes
// @Description Empty index registration
type CreateIndexRequest struct {
	Name         string `json:"name" example:"handbook"`
	Description  string `json:"description" example:"Employee handbook"`
	QdrantURL    string `json:"qdrant_url,omitempty"`
	QdrantAPIKey string `json:"qdrant_api_key,omitempty"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the liveness status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the registry, lock and task queue backends
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK
	for name, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the build version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not available")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

// Index endpoints

// handleListIndexes godoc
// @Summary      List indexes
// @Description  Returns every index with its document count
// @Tags         Indexes
// @Produce      json
// @Success      200  {array}   domain.IndexSummary
// @Failure      500  {object}  ErrorResponse
// @Router       /indexes [get]
func (s *Server) handleListIndexes(w http.ResponseWriter, r *http.Request) {
	indexes, err := s.indexService.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexes)
}

// handleCreateIndex godoc
// @Summary      Create an empty index
// @Description  Registers an index and creates its collection when a vector store connection is available
// @Tags         Indexes
// @Accept       json
// @Produce      json
// @Param        request  body      CreateIndexRequest  true  "Index definition"
// @Success      201      {object}  domain.IndexSummary  "Created"
// @Success      200      {object}  domain.IndexSummary  "Already exists"
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Failure      502      {object}  ErrorResponse
// @Router       /indexes [post]
func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var req CreateIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCategoryError(w, http.StatusBadRequest, domain.CategoryValidation, "invalid request body")
		return
	}

	summary, created, err := s.indexService.Create(r.Context(), domain.CreateIndexRequest{
		Name:        req.Name,
		Description: req.Description,
		Connection:  domain.Connection{URL: req.QdrantURL, APIKey: req.QdrantAPIKey},
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, summary)
}

// handleDeleteIndex godoc
// @Summary      Delete an index
// @Description  Removes the index and its documents locally, then drops the collection. Remote failures are reported, not hidden.
// @Tags         Indexes
// @Produce      json
// @Param        name            path      string  true   "Index name"
// @Param        qdrant_url      query     string  false  "Qdrant URL (defaults to server configuration)"
// @Param        qdrant_api_key  query     string  false  "Qdrant API key"
// @Success      200             {object}  domain.DeleteIndexResult
// @Failure      404             {object}  ErrorResponse
// @Failure      409             {object}  ErrorResponse
// @Router       /indexes/{name} [delete]
func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	result, err := s.indexService.DeleteIndex(r.Context(), r.PathValue("name"), queryConnection(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListDocuments godoc
// @Summary      List documents in an index
// @Tags         Documents
// @Produce      json
// @Param        name  path      string  true  "Index name"
// @Success      200   {array}   domain.Document
// @Failure      404   {object}  ErrorResponse
// @Router       /indexes/{name}/documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.indexService.ListDocuments(r.Context(), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument godoc
// @Summary      Get a document record
// @Tags         Documents
// @Produce      json
// @Param        name  path      string  true  "Index name"
// @Param        id    path      string  true  "Document ID"
// @Success      200   {object}  domain.Document
// @Failure      404   {object}  ErrorResponse
// @Router       /indexes/{name}/documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.indexService.GetDocument(r.Context(), r.PathValue("name"), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument godoc
// @Summary      Delete a document
// @Description  Removes the document's points and then its registry record
// @Tags         Documents
// @Produce      json
// @Param        name            path      string  true   "Index name"
// @Param        id              path      string  true   "Document ID"
// @Param        qdrant_url      query     string  false  "Qdrant URL (defaults to server configuration)"
// @Param        qdrant_api_key  query     string  false  "Qdrant API key"
// @Success      200             {object}  MessageResponse
// @Failure      404             {object}  ErrorResponse
// @Failure      409             {object}  ErrorResponse
// @Failure      502             {object}  ErrorResponse
// @Router       /indexes/{name}/documents/{id} [delete]
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	err := s.indexService.DeleteDocument(r.Context(), r.PathValue("name"), r.PathValue("id"), queryConnection(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Status: domain.StatusSuccess, Message: "Document deleted successfully"})
}

// handleReconcile godoc
// @Summary      Reconcile an index with its collection
// @Description  Deletes orphan points and dangling document records. With async=true a background task is queued against the default connection.
// @Tags         Indexes
// @Produce      json
// @Param        name            path      string  true   "Index name"
// @Param        async           query     bool    false  "Queue instead of running inline"
// @Param        qdrant_url      query     string  false  "Qdrant URL (defaults to server configuration)"
// @Param        qdrant_api_key  query     string  false  "Qdrant API key"
// @Success      200             {object}  domain.ReconcileResponse  "Completed"
// @Success      202             {object}  domain.ReconcileResponse  "Queued"
// @Failure      400             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Failure      409             {object}  ErrorResponse
// @Router       /indexes/{name}/reconcile [post]
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	async := false
	if raw := r.URL.Query().Get("async"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeCategoryError(w, http.StatusBadRequest, domain.CategoryValidation, "async must be a boolean")
			return
		}
		async = parsed
	}

	resp, err := s.reconcileService.Reconcile(r.Context(), domain.ReconcileRequest{
		IndexName:  r.PathValue("name"),
		Connection: queryConnection(r),
		Async:      async,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if resp.TaskID != "" {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

// Ingestion and search

// handleUpload godoc
// @Summary      Upload a document
// @Description  Extracts, chunks and embeds a file, then stores its vectors in the index collection
// @Tags         Documents
// @Accept       mpfd
// @Produce      json
// @Param        file            formData  file    true   "Document (txt, md, html, pdf, docx, xlsx)"
// @Param        metadata        formData  string  true   "JSON: {index_name, description, chunk_size, chunk_overlap, chunking_method}"
// @Param        qdrant_url      formData  string  false  "Qdrant URL (defaults to server configuration)"
// @Param        qdrant_api_key  formData  string  false  "Qdrant API key"
// @Success      200             {object}  domain.UploadResult
// @Failure      400             {object}  ErrorResponse
// @Failure      409             {object}  ErrorResponse
// @Failure      422             {object}  ErrorResponse
// @Failure      502             {object}  ErrorResponse
// @Router       /upload [post]
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeCategoryError(w, http.StatusBadRequest, domain.CategoryValidation,
				fmt.Sprintf("file exceeds %d bytes", s.maxUpload))
			return
		}
		writeCategoryError(w, http.StatusBadRequest, domain.CategoryValidation, "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeCategoryError(w, http.StatusBadRequest, domain.CategoryValidation, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeCategoryError(w, http.StatusBadRequest, domain.CategoryValidation, "failed to read file")
		return
	}

	meta, err := domain.ParseUploadMetadata(r.FormValue("metadata"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := s.ingestionService.Ingest(r.Context(), domain.UploadRequest{
		Filename: header.Filename,
		Content:  content,
		Metadata: meta,
		Connection: domain.Connection{
			URL:    r.FormValue("qdrant_url"),
			APIKey: r.FormValue("qdrant_api_key"),
		},
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSearch godoc
// @Summary      Search an index
// @Description  Embeds the query and returns the nearest chunks, highest score first
// @Tags         Search
// @Accept       json
// @Produce      json
// @Param        name            path      string                true   "Index name"
// @Param        request         body      domain.SearchRequest  true   "Query and limit (default 10, max 100)"
// @Param        qdrant_url      query     string                false  "Qdrant URL (defaults to server configuration)"
// @Param        qdrant_api_key  query     string                false  "Qdrant API key"
// @Success      200             {object}  domain.SearchResponse
// @Failure      400             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Failure      502             {object}  ErrorResponse
// @Router       /search/{name} [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCategoryError(w, http.StatusBadRequest, domain.CategoryValidation, "invalid request body")
		return
	}
	req.IndexName = r.PathValue("name")
	req.Connection = queryConnection(r)

	resp, err := s.searchService.Search(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Vector store connection helpers

// handleTestConnection godoc
// @Summary      Test a Qdrant connection
// @Tags         Qdrant
// @Accept       json
// @Produce      json
// @Param        request  body      ConnectionRequest  true  "Qdrant endpoint"
// @Success      200      {object}  MessageResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      502      {object}  ErrorResponse
// @Router       /qdrant/test-connection [post]
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := decodeConnection(w, r)
	if !ok {
		return
	}
	if err := s.connectionService.Test(r.Context(), conn); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Status: domain.StatusSuccess, Message: "Connection successful"})
}

// handleListCollections godoc
// @Summary      List Qdrant collections
// @Tags         Qdrant
// @Accept       json
// @Produce      json
// @Param        request  body      ConnectionRequest  true  "Qdrant endpoint"
// @Success      200      {object}  CollectionsResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      502      {object}  ErrorResponse
// @Router       /qdrant/collections [post]
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	conn, ok := decodeConnection(w, r)
	if !ok {
		return
	}
	names, err := s.connectionService.ListCollections(r.Context(), conn)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionsResponse{Collections: names})
}

// Background tasks

// handleGetTask godoc
// @Summary      Get background task status
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.reconcileService.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Helpers

// queryConnection reads the optional qdrant_url and qdrant_api_key query parameters
func queryConnection(r *http.Request) domain.Connection {
	q := r.URL.Query()
	return domain.Connection{URL: q.Get("qdrant_url"), APIKey: q.Get("qdrant_api_key")}
}

func decodeConnection(w http.ResponseWriter, r *http.Request) (domain.Connection, bool) {
	var req ConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeCategoryError(w, http.StatusBadRequest, domain.CategoryValidation, "invalid request body")
		return domain.Connection{}, false
	}
	return domain.Connection{URL: req.URL, APIKey: req.APIKey}, true
}

// statusFor maps an error category to its HTTP status
func statusFor(category string) int {
	switch category {
	case domain.CategoryValidation:
		return http.StatusBadRequest
	case domain.CategoryExtraction:
		return http.StatusUnprocessableEntity
	case domain.CategoryNotFound:
		return http.StatusNotFound
	case domain.CategoryConflict:
		return http.StatusConflict
	case domain.CategoryEmbedding, domain.CategoryConnection, domain.CategorySearch,
		domain.CategoryPartialFailure, domain.CategoryVectorStore:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes a categorised error. Internal errors hide their detail.
func writeServiceError(w http.ResponseWriter, err error) {
	category := domain.Category(err)
	resp := ErrorResponse{Error: err.Error(), Category: category}
	if category == domain.CategoryInternal {
		resp.Error = "internal server error"
	}

	var stageErr *domain.IngestionError
	if errors.As(err, &stageErr) {
		resp.Stage = string(stageErr.Stage)
		if category != domain.CategoryInternal {
			resp.Error = stageErr.Err.Error()
		}
	}
	writeJSON(w, statusFor(category), resp)
}

func writeCategoryError(w http.ResponseWriter, status int, category, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Category: category})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeCategoryError(w, status, domain.CategoryInternal, message)
}
