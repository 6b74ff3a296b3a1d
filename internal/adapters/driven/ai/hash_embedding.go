package ai

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math/rand"
	"strconv"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure HashEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*HashEmbedding)(nil)

const (
	// HashEmbeddingModel identifies vectors produced without a provider
	HashEmbeddingModel = "fallback-md5"

	hashEmbeddingDimensions = 1536
)

// HashEmbedding produces deterministic pseudo-embeddings when no provider is configured.
// The MD5 of the text seeds a PRNG that fills the vector with values in [-1, 1).
// Vectors carry no meaning; identical texts still map to identical vectors.
type HashEmbedding struct {
	dimensions int
}

// NewHashEmbedding creates the fallback embedding service
func NewHashEmbedding() *HashEmbedding {
	return &HashEmbedding{dimensions: hashEmbeddingDimensions}
}

func (e *HashEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = e.vector(text)
	}
	return embeddings, nil
}

func (e *HashEmbedding) vector(text string) []float32 {
	sum := md5.Sum([]byte(text))
	// First 8 hex digits of the digest form the seed
	seed, _ := strconv.ParseInt(hex.EncodeToString(sum[:])[:8], 16, 64)

	rng := rand.New(rand.NewSource(seed))
	vec := make([]float32, e.dimensions)
	for i := range vec {
		vec[i] = float32(rng.Float64()*2 - 1)
	}
	return vec
}

func (e *HashEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return e.vector(query), ctx.Err()
}

func (e *HashEmbedding) Dimensions() int {
	return e.dimensions
}

func (e *HashEmbedding) Model() string {
	return HashEmbeddingModel
}

func (e *HashEmbedding) HealthCheck(ctx context.Context) error {
	return nil
}

func (e *HashEmbedding) Close() error {
	return nil
}
