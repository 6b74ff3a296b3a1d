package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/chunking"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

var testConnection = domain.Connection{URL: "http://qdrant.test:6333"}

// fixture wires every service to one set of in-memory mocks
type fixture struct {
	registry  *mocks.MockIndexRegistry
	store     *mocks.MockVectorStore
	dialer    *mocks.MockVectorStoreDialer
	lock      *mocks.MockDistributedLock
	embedder  *mocks.MockEmbeddingService
	queue     *mocks.MockTaskQueue
	extractor *mocks.MockExtractor
	locker    *IndexLocker

	ingestion driving.IngestionService
	search    driving.SearchService
	indexes   driving.IndexService
	reconcile driving.ReconcileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDefault(t, testConnection)
}

func newFixtureWithDefault(t *testing.T, defaultConn domain.Connection) *fixture {
	t.Helper()

	f := &fixture{
		registry:  mocks.NewMockIndexRegistry(),
		store:     mocks.NewMockVectorStore(),
		lock:      mocks.NewMockDistributedLock(),
		embedder:  mocks.NewMockEmbeddingService(),
		queue:     mocks.NewMockTaskQueue(),
		extractor: mocks.NewMockExtractor("txt", "md"),
	}
	f.dialer = mocks.NewMockVectorStoreDialer(f.store)
	f.locker = NewIndexLocker(IndexLockerConfig{Lock: f.lock, Wait: 100 * time.Millisecond})

	f.ingestion = NewIngestionService(IngestionConfig{
		Registry:          f.registry,
		Extractors:        mocks.NewMockExtractorRegistry(f.extractor),
		Chunker:           chunking.NewChunker(),
		Embedder:          f.embedder,
		Dialer:            f.dialer,
		Locker:            f.locker,
		DefaultConnection: defaultConn,
	})
	f.search = NewSearchService(SearchConfig{
		Registry:          f.registry,
		Embedder:          f.embedder,
		Dialer:            f.dialer,
		DefaultConnection: defaultConn,
	})
	f.indexes = NewIndexService(IndexConfig{
		Registry:          f.registry,
		Embedder:          f.embedder,
		Dialer:            f.dialer,
		Locker:            f.locker,
		DefaultConnection: defaultConn,
	})
	f.reconcile = NewReconcileService(ReconcileConfig{
		Registry:          f.registry,
		Dialer:            f.dialer,
		Locker:            f.locker,
		TaskQueue:         f.queue,
		DefaultConnection: defaultConn,
	})
	return f
}

// upload builds a txt upload with recursive chunking
func upload(index, filename, text string, size, overlap int) domain.UploadRequest {
	return domain.UploadRequest{
		Filename: filename,
		Content:  []byte(text),
		Metadata: domain.UploadMetadata{
			IndexName:      index,
			ChunkSize:      size,
			ChunkOverlap:   overlap,
			ChunkingMethod: domain.ChunkingRecursive,
		},
	}
}

// ingest uploads text and fails the test on error
func (f *fixture) ingest(t *testing.T, index, filename, text string) *domain.UploadResult {
	t.Helper()
	result, err := f.ingestion.Ingest(context.Background(), upload(index, filename, text, 20, 5))
	require.NoError(t, err)
	return result
}

var fiftyChars = strings.Repeat("abcdefghij", 5)
