package ai

import (
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// EmbeddingConfig selects and configures the embedding provider
type EmbeddingConfig struct {
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	Model             string
	BatchSize         int
	RequestsPerSecond float64
	Timeout           time.Duration
	Logger            *slog.Logger
}

// NewEmbeddingService returns the OpenAI provider when an API key is configured,
// otherwise the deterministic hash fallback.
func NewEmbeddingService(cfg EmbeddingConfig) (driven.EmbeddingService, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.OpenAIAPIKey == "" {
		logger.Warn("no embedding API key configured, using hash fallback embeddings",
			"model", HashEmbeddingModel)
		return NewHashEmbedding(), nil
	}

	svc, err := NewOpenAIEmbedding(OpenAIConfig{
		APIKey:            cfg.OpenAIAPIKey,
		Model:             cfg.Model,
		BaseURL:           cfg.OpenAIBaseURL,
		BatchSize:         cfg.BatchSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("embedding provider configured", "provider", "openai", "model", svc.Model(), "dimensions", svc.Dimensions())
	return svc, nil
}
