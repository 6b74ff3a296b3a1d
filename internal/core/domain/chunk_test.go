package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestNumberChunks(t *testing.T) {
	chunks := NumberChunks([]string{"a", "b", "c"})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has index %d", i, chunk.Index)
		}
	}
	if got := Texts(chunks); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Texts() = %v", got)
	}
}

func TestChunkOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    ChunkOptions
		wantErr bool
	}{
		{"defaults", DefaultChunkOptions(), false},
		{"zero size", ChunkOptions{Size: 0}, true},
		{"negative overlap", ChunkOptions{Size: 10, Overlap: -1}, true},
		{"overlap at size is left to the chunker", ChunkOptions{Size: 10, Overlap: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr && !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
