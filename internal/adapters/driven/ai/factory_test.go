package ai

import (
	"testing"
)

func TestNewEmbeddingService_FallbackWithoutKey(t *testing.T) {
	svc, err := NewEmbeddingService(EmbeddingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := svc.(*HashEmbedding); !ok {
		t.Fatalf("expected *HashEmbedding, got %T", svc)
	}
	if svc.Model() != HashEmbeddingModel {
		t.Errorf("expected %s, got %s", HashEmbeddingModel, svc.Model())
	}
}

func TestNewEmbeddingService_OpenAI(t *testing.T) {
	svc, err := NewEmbeddingService(EmbeddingConfig{
		OpenAIAPIKey: "sk-test",
		Model:        "text-embedding-3-large",
		BatchSize:    16,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emb, ok := svc.(*OpenAIEmbedding)
	if !ok {
		t.Fatalf("expected *OpenAIEmbedding, got %T", svc)
	}
	if emb.Model() != "text-embedding-3-large" || emb.Dimensions() != 3072 {
		t.Errorf("unexpected model %s/%d", emb.Model(), emb.Dimensions())
	}
	if emb.batchSize != 16 {
		t.Errorf("expected batch size 16, got %d", emb.batchSize)
	}
}
