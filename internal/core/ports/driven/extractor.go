package driven

import "context"

// TextExtractor converts raw file bytes of a given type into plain text
type TextExtractor interface {
	// Extract returns the plain text of content.
	// Unparsable content returns ErrExtraction.
	Extract(ctx context.Context, content []byte) (string, error)

	// SupportedTypes returns the file types (lower-case extensions) this extractor handles
	SupportedTypes() []string

	// Priority determines selection order (higher = preferred)
	Priority() int
}

// ExtractorRegistry selects an extractor by file type
type ExtractorRegistry interface {
	// Register adds an extractor to the registry
	Register(extractor TextExtractor)

	// Get returns the best extractor for a file type, or nil
	Get(fileType string) TextExtractor

	// Supports reports whether any extractor handles the file type
	Supports(fileType string) bool

	// List returns all registered file types
	List() []string
}
