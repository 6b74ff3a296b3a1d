package extractors

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.TextExtractor = (*Plaintext)(nil)

// Plaintext handles UTF-8 text files.
type Plaintext struct{}

// NewPlaintext creates a plain text extractor.
func NewPlaintext() *Plaintext {
	return &Plaintext{}
}

// Extract validates the encoding and normalises line endings.
func (e *Plaintext) Extract(_ context.Context, content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", domain.ErrExtraction)
	}
	return normaliseNewlines(string(content)), nil
}

func (e *Plaintext) SupportedTypes() []string {
	return []string{"txt"}
}

func (e *Plaintext) Priority() int {
	return 10
}

func normaliseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
