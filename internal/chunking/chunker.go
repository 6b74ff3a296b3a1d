// Package chunking splits extracted document text into fragments for embedding.
package chunking

import (
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Chunker = (*Chunker)(nil)

// sentenceSeparator delimits sentences for the sentence strategy
const sentenceSeparator = ". "

// Chunker implements driven.Chunker.
// All positions and sizes are measured in runes, never bytes.
type Chunker struct{}

// NewChunker creates a new chunker.
func NewChunker() *Chunker {
	return &Chunker{}
}

// Chunk splits text using the method named in opts.
// "recursive" uses a fixed sliding window; any other method packs sentences.
func (c *Chunker) Chunk(text string, opts domain.ChunkOptions) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return []string{}, nil
	}

	if opts.Method == domain.ChunkingRecursive {
		return splitWindow(text, opts.Size, opts.Overlap), nil
	}
	return splitSentences(text, opts.Size), nil
}

// splitWindow emits text[start:start+size] and advances by size-overlap until start
// passes the end, so the tail overlap is emitted as a final short chunk.
// An overlap that would stall the window is ignored.
func splitWindow(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	if step <= 0 {
		step = size
	}

	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// splitSentences greedily packs ". " separated sentences into chunks shorter than size.
// A single sentence longer than size becomes its own oversized chunk.
func splitSentences(text string, size int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		current.Reset()
		currentLen = 0
	}

	for _, sentence := range strings.Split(text, sentenceSeparator) {
		sentenceLen := len([]rune(sentence))
		if currentLen+sentenceLen >= size {
			flush()
		}
		current.WriteString(sentence)
		current.WriteString(sentenceSeparator)
		currentLen += sentenceLen + len(sentenceSeparator)
	}
	flush()

	if chunks == nil {
		return []string{}
	}
	return chunks
}
