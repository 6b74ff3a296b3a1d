package domain

import "fmt"

// ChunkingMethod selects a text segmentation strategy
type ChunkingMethod string

const (
	// ChunkingRecursive is a fixed-size sliding window
	ChunkingRecursive ChunkingMethod = "recursive"
	// ChunkingSentence greedily packs ". " separated sentences.
	// Any method name other than "recursive" behaves this way.
	ChunkingSentence ChunkingMethod = "sentence"
)

// Default chunking parameters
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ChunkOptions configures a single chunking pass
type ChunkOptions struct {
	Size    int            `json:"chunk_size"`
	Overlap int            `json:"chunk_overlap"`
	Method  ChunkingMethod `json:"chunking_method"`
}

// DefaultChunkOptions returns the upload defaults
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		Size:    DefaultChunkSize,
		Overlap: DefaultChunkOverlap,
		Method:  ChunkingRecursive,
	}
}

// Validate rejects options the chunker cannot honour
func (o ChunkOptions) Validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrValidation, o.Size)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("%w: chunk_overlap must not be negative, got %d", ErrValidation, o.Overlap)
	}
	return nil
}

// Chunk is a transient text fragment, the unit of embedding
type Chunk struct {
	Text  string `json:"text"`
	Index int    `json:"chunk_index"`
}

// NumberChunks wraps fragments as chunks indexed by position
func NumberChunks(fragments []string) []Chunk {
	chunks := make([]Chunk, len(fragments))
	for i, text := range fragments {
		chunks[i] = Chunk{Text: text, Index: i}
	}
	return chunks
}

// Texts returns the chunk texts in order
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}
