package ai

import (
	"context"
	"reflect"
	"testing"
)

func TestHashEmbedding_Deterministic(t *testing.T) {
	e := NewHashEmbedding()
	ctx := context.Background()

	a, err := e.Embed(ctx, []string{"hello", "world", "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(a))
	}
	if !reflect.DeepEqual(a[0], a[2]) {
		t.Error("identical texts should embed identically")
	}
	if reflect.DeepEqual(a[0], a[1]) {
		t.Error("different texts should embed differently")
	}

	q, _ := e.EmbedQuery(ctx, "hello")
	if !reflect.DeepEqual(q, a[0]) {
		t.Error("query embedding should match document embedding of the same text")
	}
}

func TestHashEmbedding_Shape(t *testing.T) {
	e := NewHashEmbedding()

	if e.Dimensions() != 1536 {
		t.Errorf("expected 1536 dimensions, got %d", e.Dimensions())
	}
	if e.Model() != "fallback-md5" {
		t.Errorf("expected fallback-md5, got %s", e.Model())
	}

	vecs, _ := e.Embed(context.Background(), []string{"range check"})
	if len(vecs[0]) != 1536 {
		t.Fatalf("expected 1536 values, got %d", len(vecs[0]))
	}
	for i, v := range vecs[0] {
		if v < -1 || v > 1 {
			t.Fatalf("value %d out of range: %v", i, v)
		}
	}
}

func TestHashEmbedding_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashEmbedding().Embed(ctx, []string{"a"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
