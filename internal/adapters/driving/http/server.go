package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the driving ports served over HTTP
type Services struct {
	Ingestion   driving.IngestionService
	Search      driving.SearchService
	Indexes     driving.IndexService
	Connections driving.ConnectionService
	Reconcile   driving.ReconcileService
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	maxUpload  int64
	logger     *slog.Logger

	// Services
	ingestionService  driving.IngestionService
	searchService     driving.SearchService
	indexService      driving.IndexService
	connectionService driving.ConnectionService
	reconcileService  driving.ReconcileService

	// Infrastructure checked by /ready, keyed by name
	checks map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	MaxUploadBytes int64
	CORSOrigins    []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8000,
		Version:        "dev",
		MaxUploadBytes: domain.MaxUploadBytes,
		CORSOrigins:    []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, svc Services, checks map[string]Pinger) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = domain.MaxUploadBytes
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		maxUpload:         maxUpload,
		logger:            logger,
		ingestionService:  svc.Ingestion,
		searchService:     svc.Search,
		indexService:      svc.Indexes,
		connectionService: svc.Connections,
		reconcileService:  svc.Reconcile,
		checks:            checks,
	}

	var handler http.Handler = s.router
	handler = NewCORSMiddleware(origins).Handler(handler)
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: handler,
		// Uploads and embedding calls can take a while
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwagger)

	// Index endpoints
	s.router.HandleFunc("GET /indexes", s.handleListIndexes)
	s.router.HandleFunc("POST /indexes", s.handleCreateIndex)
	s.router.HandleFunc("DELETE /indexes/{name}", s.handleDeleteIndex)
	s.router.HandleFunc("GET /indexes/{name}/documents", s.handleListDocuments)
	s.router.HandleFunc("GET /indexes/{name}/documents/{id}", s.handleGetDocument)
	s.router.HandleFunc("DELETE /indexes/{name}/documents/{id}", s.handleDeleteDocument)
	s.router.HandleFunc("POST /indexes/{name}/reconcile", s.handleReconcile)

	// Ingestion and search
	s.router.HandleFunc("POST /upload", s.handleUpload)
	s.router.HandleFunc("POST /search/{name}", s.handleSearch)

	// Vector store connection helpers
	s.router.HandleFunc("POST /qdrant/test-connection", s.handleTestConnection)
	s.router.HandleFunc("POST /qdrant/collections", s.handleListCollections)

	// Background tasks
	s.router.HandleFunc("GET /tasks/{id}", s.handleGetTask)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
