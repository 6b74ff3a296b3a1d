// Package extractors turns uploaded file bytes into plain text, selected by file type.
package extractors

import (
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry implements ExtractorRegistry with priority-based selection.
// When multiple extractors claim a file type, the highest priority one is used.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.TextExtractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make([]driven.TextExtractor, 0),
	}
}

// Register registers an extractor.
func (r *Registry) Register(extractor driven.TextExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extractors = append(r.extractors, extractor)
}

// Get retrieves the best extractor for a file type, or nil if none handles it.
func (r *Registry) Get(fileType string) driven.TextExtractor {
	matches := r.getAll(fileType)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// Supports reports whether any extractor handles the file type.
func (r *Registry) Supports(fileType string) bool {
	return r.Get(fileType) != nil
}

func (r *Registry) getAll(fileType string) []driven.TextExtractor {
	fileType = normaliseType(fileType)
	if fileType == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []driven.TextExtractor
	for _, e := range r.extractors {
		for _, t := range e.SupportedTypes() {
			if normaliseType(t) == fileType {
				matches = append(matches, e)
				break
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority() > matches[j].Priority()
	})
	return matches
}

// List returns all registered file types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typeSet := make(map[string]struct{})
	for _, e := range r.extractors {
		for _, t := range e.SupportedTypes() {
			typeSet[normaliseType(t)] = struct{}{}
		}
	}

	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// normaliseType lower-cases a type and drops a leading dot, so ".PDF" matches "pdf".
func normaliseType(t string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(t)), ".")
}

// DefaultRegistry creates a registry with every built-in extractor registered.
// PDF extraction shells out to pdftotext through runner; nil uses the system binary.
func DefaultRegistry(runner CommandRunner) *Registry {
	r := NewRegistry()

	r.Register(NewPlaintext())
	r.Register(NewMarkdown())
	r.Register(NewHTML())
	r.Register(NewDOCX())
	r.Register(NewXLSX())
	r.Register(NewXLS())
	if runner == nil {
		r.Register(NewPDF())
	} else {
		r.Register(NewPDFWithRunner(runner))
	}

	return r
}
