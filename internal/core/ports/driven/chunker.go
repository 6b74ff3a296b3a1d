package driven

import "github.com/custodia-labs/sercha-ingest/internal/core/domain"

// Chunker splits plain text into an ordered sequence of fragments.
// Identical input always yields identical output.
type Chunker interface {
	Chunk(text string, opts domain.ChunkOptions) ([]string, error)
}
