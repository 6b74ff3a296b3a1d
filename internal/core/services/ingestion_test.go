package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven/mocks"
)

// assertStage checks err is an IngestionError for stage with the given category
func assertStage(t *testing.T, err error, stage domain.IngestionStage, category string) {
	t.Helper()
	require.Error(t, err)
	var stageErr *domain.IngestionError
	require.True(t, errors.As(err, &stageErr), "expected IngestionError, got %T: %v", err, err)
	assert.Equal(t, stage, stageErr.Stage)
	assert.Equal(t, category, domain.Category(err))
}

func TestIngest_FiftyCharactersMakeFourChunks(t *testing.T) {
	f := newFixture(t)

	result, err := f.ingestion.Ingest(context.Background(), upload("docs", "notes.txt", fiftyChars, 20, 5))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, result.Status)
	assert.Equal(t, "notes.txt", result.Filename)
	assert.Equal(t, 4, result.ChunksProcessed)
	assert.NotEmpty(t, result.DocumentID)

	points := f.store.PointsForDocument("docs", result.DocumentID)
	require.Len(t, points, 4)
	wantLengths := []int{20, 20, 20, 5}
	for i, p := range points {
		assert.Equal(t, i, p.Payload[domain.PayloadChunkIndex])
		assert.Len(t, p.Payload[domain.PayloadText], wantLengths[i])
		assert.Equal(t, "notes.txt", p.Payload[domain.PayloadFilename])
		assert.Equal(t, "txt", p.Payload[domain.PayloadFileType])
		assert.Equal(t, "mock-embedding-model", p.Payload[domain.PayloadEmbeddingModel])
		assert.Len(t, p.Vector, 16)
	}

	idx, err := f.registry.GetIndex(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{result.DocumentID}, idx.DocumentIDs)
	assert.Equal(t, "mock-embedding-model", idx.EmbeddingModel)

	doc, err := f.registry.GetDocument(context.Background(), result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 4, doc.ChunkCount)
	assert.Equal(t, int64(50), doc.Size)
	assert.Equal(t, "txt", doc.FileType)

	assert.False(t, f.lock.IsHeld(LockName("docs")), "index lock should be released")
}

func TestIngest_UnsupportedTypeTouchesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.ingestion.Ingest(context.Background(), upload("docs", "setup.exe", "MZ binary", 20, 5))

	assertStage(t, err, domain.StageValidating, domain.CategoryValidation)
	assert.Contains(t, err.Error(), "unsupported file type: exe")
	assert.Empty(t, f.dialer.Dialed())
	assert.False(t, f.store.HasCollection("docs"))
	assert.Zero(t, f.embedder.Calls())
	assert.Zero(t, f.registry.DocumentCount())
	_, err = f.registry.GetIndex(context.Background(), "docs")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngest_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		req  domain.UploadRequest
	}{
		{"missing index name", upload("", "a.txt", "hello", 20, 5)},
		{"invalid index name", upload("a/b", "a.txt", "hello", 20, 5)},
		{"overlap not below size", upload("docs", "a.txt", "hello", 20, 20)},
		{"zero chunk size", upload("docs", "a.txt", "hello", 0, 0)},
		{"missing filename", upload("docs", " ", "hello", 20, 5)},
		{"no extension", upload("docs", "README", "hello", 20, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.ingestion.Ingest(context.Background(), tt.req)
			assertStage(t, err, domain.StageValidating, domain.CategoryValidation)
			assert.Zero(t, f.embedder.Calls())
		})
	}
}

func TestIngest_FileTooLarge(t *testing.T) {
	f := newFixture(t)
	svc := NewIngestionService(IngestionConfig{
		Registry:          f.registry,
		Extractors:        mocks.NewMockExtractorRegistry(f.extractor),
		Embedder:          f.embedder,
		Dialer:            f.dialer,
		Locker:            f.locker,
		DefaultConnection: testConnection,
		MaxUploadBytes:    10,
	})

	_, err := svc.Ingest(context.Background(), upload("docs", "a.txt", strings.Repeat("x", 11), 20, 5))
	assertStage(t, err, domain.StageValidating, domain.CategoryValidation)
}

func TestIngest_RequiresConnection(t *testing.T) {
	f := newFixtureWithDefault(t, domain.Connection{})

	_, err := f.ingestion.Ingest(context.Background(), upload("docs", "a.txt", "hello", 20, 5))
	assertStage(t, err, domain.StageValidating, domain.CategoryValidation)
	assert.Contains(t, err.Error(), "qdrant_url")
}

func TestIngest_RequestConnectionOverridesDefault(t *testing.T) {
	f := newFixture(t)
	req := upload("docs", "a.txt", "hello world", 20, 5)
	req.Connection = domain.Connection{URL: "https://cluster.example.com", APIKey: "secret"}

	_, err := f.ingestion.Ingest(context.Background(), req)
	require.NoError(t, err)

	dialed := f.dialer.Dialed()
	require.Len(t, dialed, 1)
	assert.Equal(t, req.Connection, dialed[0])
}

func TestIngest_EmptyExtraction(t *testing.T) {
	f := newFixture(t)
	f.extractor.ExtractFn = func([]byte) (string, error) { return " \n\t ", nil }

	_, err := f.ingestion.Ingest(context.Background(), upload("docs", "blank.txt", "ignored", 20, 5))

	assertStage(t, err, domain.StageExtracting, domain.CategoryExtraction)
	assert.Empty(t, f.dialer.Dialed())
}

func TestIngest_ExtractorError(t *testing.T) {
	f := newFixture(t)
	f.extractor.ExtractFn = func([]byte) (string, error) {
		return "", fmt.Errorf("%w: corrupt file", domain.ErrExtraction)
	}

	_, err := f.ingestion.Ingest(context.Background(), upload("docs", "bad.txt", "x", 20, 5))
	assertStage(t, err, domain.StageExtracting, domain.CategoryExtraction)
}

func TestIngest_EmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.embedder.SetError(errors.New("provider unavailable"))

	_, err := f.ingestion.Ingest(context.Background(), upload("docs", "a.txt", fiftyChars, 20, 5))

	assertStage(t, err, domain.StageEmbedding, domain.CategoryEmbedding)
	assert.Empty(t, f.dialer.Dialed())
	assert.False(t, f.store.HasCollection("docs"))
}

func TestIngest_ConnectFailure(t *testing.T) {
	f := newFixture(t)
	f.dialer.DialFn = func(domain.Connection) error { return errors.New("connection refused") }

	_, err := f.ingestion.Ingest(context.Background(), upload("docs", "a.txt", fiftyChars, 20, 5))

	assertStage(t, err, domain.StageConnecting, domain.CategoryConnection)
	assert.Empty(t, f.lock.Acquired(), "no lock should be taken before connecting succeeds")
}

func TestIngest_RegisteredModelMismatch(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.registry.RegisterIndex(context.Background(), domain.NewIndex("docs", "", "other-model"))
	require.NoError(t, err)

	_, err = f.ingestion.Ingest(context.Background(), upload("docs", "a.txt", fiftyChars, 20, 5))

	assertStage(t, err, domain.StageCollectionEnsuring, domain.CategoryConflict)
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
	assert.Zero(t, f.store.UpsertCalls)
}

func TestIngest_StoredVectorsModelMismatch(t *testing.T) {
	f := newFixture(t)
	f.store.PutPoint("docs", domain.Point{
		ID:      "existing",
		Vector:  make([]float32, 16),
		Payload: map[string]any{domain.PayloadEmbeddingModel: "other-model"},
	})

	_, err := f.ingestion.Ingest(context.Background(), upload("docs", "a.txt", fiftyChars, 20, 5))

	assertStage(t, err, domain.StageCollectionEnsuring, domain.CategoryConflict)
	assert.Equal(t, 1, f.store.PointCount("docs"))
}

func TestIngest_VectorSizeMismatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.EnsureCollection(context.Background(), "docs", 8, domain.DistanceCosine))

	_, err := f.ingestion.Ingest(context.Background(), upload("docs", "a.txt", fiftyChars, 20, 5))
	assertStage(t, err, domain.StageCollectionEnsuring, domain.CategoryConflict)
}

func TestIngest_UpsertFailureLeavesRegistryUntouched(t *testing.T) {
	f := newFixture(t)
	f.store.UpsertErr = errors.New("write timeout")

	_, err := f.ingestion.Ingest(context.Background(), upload("docs", "a.txt", fiftyChars, 20, 5))

	assertStage(t, err, domain.StageUpserting, domain.CategoryVectorStore)
	assert.Zero(t, f.registry.DocumentCount())
}

func TestIngest_RegistryFailureCompensates(t *testing.T) {
	f := newFixture(t)
	f.registry.AddDocumentErr = errors.New("disk full")

	_, err := f.ingestion.Ingest(context.Background(), upload("docs", "a.txt", fiftyChars, 20, 5))

	assertStage(t, err, domain.StageMetadataRecording, domain.CategoryPartialFailure)
	assert.Zero(t, f.store.PointCount("docs"), "uploaded points should be rolled back")
}

func TestIngest_CompensationFailureReported(t *testing.T) {
	f := newFixture(t)
	f.registry.AddDocumentErr = errors.New("disk full")
	f.store.DeleteByFilterErr = errors.New("store unreachable")

	_, err := f.ingestion.Ingest(context.Background(), upload("docs", "a.txt", fiftyChars, 20, 5))

	assertStage(t, err, domain.StageMetadataRecording, domain.CategoryPartialFailure)
	assert.Contains(t, err.Error(), "could not be removed")
	assert.Equal(t, 4, f.store.PointCount("docs"))
}

func TestIngest_BusyIndex(t *testing.T) {
	f := newFixture(t)
	f.lock.Hold(LockName("docs"), time.Minute)

	_, err := f.ingestion.Ingest(context.Background(), upload("docs", "a.txt", fiftyChars, 20, 5))

	assertStage(t, err, domain.StageCollectionEnsuring, domain.CategoryConflict)
	assert.ErrorIs(t, err, domain.ErrIndexBusy)
	assert.Zero(t, f.store.UpsertCalls)
}

func TestIngest_AppendsToExistingIndex(t *testing.T) {
	f := newFixture(t)

	first := f.ingest(t, "docs", "one.txt", "first document text")
	second := f.ingest(t, "docs", "two.md", "second document text")

	idx, err := f.registry.GetIndex(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{first.DocumentID, second.DocumentID}, idx.DocumentIDs)
	assert.Len(t, f.store.PointsForDocument("docs", second.DocumentID), second.ChunksProcessed)
}
