package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Ensure ingestionService implements IngestionService
var _ driving.IngestionService = (*ingestionService)(nil)

// IngestionConfig holds the dependencies of the upload pipeline
type IngestionConfig struct {
	Registry          driven.IndexRegistry
	Extractors        driven.ExtractorRegistry
	Chunker           driven.Chunker
	Embedder          driven.EmbeddingService
	Dialer            driven.VectorStoreDialer
	Locker            *IndexLocker
	DefaultConnection domain.Connection
	MaxUploadBytes    int64 // default: domain.MaxUploadBytes
	Logger            *slog.Logger
}

type ingestionService struct {
	registry   driven.IndexRegistry
	extractors driven.ExtractorRegistry
	chunker    driven.Chunker
	embedder   driven.EmbeddingService
	stores     vectorStores
	locker     *IndexLocker
	maxBytes   int64
	logger     *slog.Logger
}

// NewIngestionService creates the upload pipeline
func NewIngestionService(cfg IngestionConfig) driving.IngestionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = domain.MaxUploadBytes
	}

	return &ingestionService{
		registry:   cfg.Registry,
		extractors: cfg.Extractors,
		chunker:    cfg.Chunker,
		embedder:   cfg.Embedder,
		stores:     vectorStores{dialer: cfg.Dialer, fallback: cfg.DefaultConnection},
		locker:     cfg.Locker,
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// ingestion carries one upload through the pipeline
type ingestion struct {
	req      domain.UploadRequest
	conn     domain.Connection
	fileType string
	text     string
	chunks   []domain.Chunk
	vectors  [][]float32
	store    driven.VectorStore
	doc      *domain.Document
	logger   *slog.Logger
}

// Ingest runs validating → extracting → chunking → embedding → connecting and then,
// under the index lock, collection_ensuring → upserting → metadata_recording.
// Nothing outside the process is touched before connecting succeeds.
func (s *ingestionService) Ingest(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error) {
	start := time.Now()
	in := &ingestion{
		req:    req,
		logger: s.logger.With("index", req.Metadata.IndexName, "filename", req.Filename),
	}

	steps := []struct {
		stage domain.IngestionStage
		run   func(context.Context, *ingestion) error
	}{
		{domain.StageValidating, s.validate},
		{domain.StageExtracting, s.extract},
		{domain.StageChunking, s.chunk},
		{domain.StageEmbedding, s.embed},
		{domain.StageConnecting, s.connect},
	}
	for _, step := range steps {
		if err := s.runStage(ctx, in, step.stage, step.run); err != nil {
			return nil, err
		}
	}

	err := s.locker.WithIndex(ctx, req.Metadata.IndexName, func(ctx context.Context) error {
		if err := s.runStage(ctx, in, domain.StageCollectionEnsuring, s.ensureCollection); err != nil {
			return err
		}
		if err := s.runStage(ctx, in, domain.StageUpserting, s.upsert); err != nil {
			return err
		}
		return s.runStage(ctx, in, domain.StageMetadataRecording, s.record)
	})
	if err != nil {
		var stageErr *domain.IngestionError
		if errors.As(err, &stageErr) {
			return nil, err
		}
		// Lock acquisition failed before the first locked stage
		in.logger.Warn("ingestion failed", "stage", domain.StageCollectionEnsuring, "error", err)
		return nil, &domain.IngestionError{Stage: domain.StageCollectionEnsuring, Err: err}
	}

	in.logger.Info("ingestion complete",
		"stage", domain.StageDone,
		"document_id", in.doc.ID,
		"chunks", len(in.chunks),
		"duration", time.Since(start),
	)

	return &domain.UploadResult{
		DocumentID:      in.doc.ID,
		Filename:        in.doc.Filename,
		ChunksProcessed: len(in.chunks),
		Status:          domain.StatusSuccess,
	}, nil
}

func (s *ingestionService) runStage(ctx context.Context, in *ingestion, stage domain.IngestionStage, run func(context.Context, *ingestion) error) error {
	in.logger.Debug("ingestion stage", "stage", stage)
	if err := run(ctx, in); err != nil {
		in.logger.Warn("ingestion failed", "stage", stage, "category", domain.Category(err), "error", err)
		return &domain.IngestionError{Stage: stage, Err: err}
	}
	return nil
}

func (s *ingestionService) validate(_ context.Context, in *ingestion) error {
	if int64(len(in.req.Content)) > s.maxBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", domain.ErrValidation, s.maxBytes)
	}
	if strings.TrimSpace(in.req.Filename) == "" {
		return fmt.Errorf("%w: filename is required", domain.ErrValidation)
	}
	if err := in.req.Metadata.Validate(); err != nil {
		return err
	}

	conn, err := s.stores.resolve(in.req.Connection)
	if err != nil {
		return err
	}
	in.conn = conn

	in.fileType = domain.FileTypeOf(in.req.Filename)
	if !s.extractors.Supports(in.fileType) {
		return fmt.Errorf("%w: unsupported file type: %s", domain.ErrValidation, in.fileType)
	}
	return nil
}

func (s *ingestionService) extract(ctx context.Context, in *ingestion) error {
	text, err := s.extractors.Get(in.fileType).Extract(ctx, in.req.Content)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: no text could be extracted from %s", domain.ErrExtraction, in.req.Filename)
	}
	in.text = text
	return nil
}

func (s *ingestionService) chunk(_ context.Context, in *ingestion) error {
	fragments, err := s.chunker.Chunk(in.text, in.req.Metadata.ChunkOptions())
	if err != nil {
		return err
	}
	if len(fragments) == 0 {
		return fmt.Errorf("%w: text produced no chunks", domain.ErrExtraction)
	}
	in.chunks = domain.NumberChunks(fragments)
	return nil
}

func (s *ingestionService) embed(ctx context.Context, in *ingestion) error {
	vectors, err := s.embedder.Embed(ctx, domain.Texts(in.chunks))
	if err != nil {
		return asCategory(domain.ErrEmbedding, err)
	}
	if len(vectors) != len(in.chunks) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrEmbedding, len(vectors), len(in.chunks))
	}
	in.vectors = vectors
	return nil
}

func (s *ingestionService) connect(ctx context.Context, in *ingestion) error {
	store, err := s.stores.dial(ctx, in.conn)
	if err != nil {
		return err
	}
	in.store = store
	return nil
}

// ensureCollection refuses to mix embedding sources in one index before creating anything
func (s *ingestionService) ensureCollection(ctx context.Context, in *ingestion) error {
	name := in.req.Metadata.IndexName
	model := s.embedder.Model()

	idx, err := s.registry.GetIndex(ctx, name)
	switch {
	case err == nil:
		if idx.EmbeddingModel != "" && idx.EmbeddingModel != model {
			return fmt.Errorf("%w: index %s was built with %s, current model is %s",
				domain.ErrEmbeddingMismatch, name, idx.EmbeddingModel, model)
		}
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	sampled, err := in.store.SampleEmbeddingModel(ctx, name)
	if err != nil {
		return asCategory(domain.ErrVectorStore, err)
	}
	if sampled != "" && sampled != model {
		return fmt.Errorf("%w: collection %s holds %s vectors, current model is %s",
			domain.ErrEmbeddingMismatch, name, sampled, model)
	}

	return asCategory(domain.ErrVectorStore, in.store.EnsureCollection(ctx, name, s.embedder.Dimensions(), domain.DistanceCosine))
}

func (s *ingestionService) upsert(ctx context.Context, in *ingestion) error {
	in.doc = &domain.Document{
		ID:         uuid.NewString(),
		IndexName:  in.req.Metadata.IndexName,
		Filename:   in.req.Filename,
		FileType:   in.fileType,
		Size:       int64(len(in.req.Content)),
		ChunkCount: len(in.chunks),
		UploadedAt: time.Now().UTC(),
	}

	model := s.embedder.Model()
	points := make([]domain.Point, len(in.chunks))
	for i, chunk := range in.chunks {
		points[i] = domain.Point{
			ID:      uuid.NewString(),
			Vector:  in.vectors[i],
			Payload: domain.ChunkPayload(in.doc, chunk, model),
		}
	}

	return asCategory(domain.ErrVectorStore, in.store.Upsert(ctx, in.doc.IndexName, points))
}

// record writes the registry entries. The points are already stored, so a failure
// here triggers a compensating delete and surfaces as ErrPartialFailure.
func (s *ingestionService) record(ctx context.Context, in *ingestion) error {
	index := domain.NewIndex(in.doc.IndexName, in.req.Metadata.Description, s.embedder.Model())

	err := func() error {
		if _, _, err := s.registry.RegisterIndex(ctx, index); err != nil {
			return err
		}
		return s.registry.AddDocument(ctx, in.doc)
	}()
	if err == nil {
		return nil
	}

	deleted, compErr := in.store.DeleteByFilter(context.WithoutCancel(ctx), in.doc.IndexName, domain.PayloadDocumentID, in.doc.ID)
	if compErr != nil {
		in.logger.Error("compensating delete failed, orphan points remain",
			"document_id", in.doc.ID,
			"error", compErr,
		)
		return fmt.Errorf("%w: registry write failed (%v) and %d points could not be removed: %v",
			domain.ErrPartialFailure, err, len(in.chunks), compErr)
	}

	in.logger.Warn("registry write failed, removed uploaded points",
		"document_id", in.doc.ID,
		"points_removed", deleted,
		"error", err,
	)
	return fmt.Errorf("%w: registry write failed after upsert, %d points rolled back: %v",
		domain.ErrPartialFailure, deleted, err)
}
