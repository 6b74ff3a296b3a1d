package mocks

import (
	"context"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// MockExtractor is a mock implementation of TextExtractor for testing.
// By default it returns the content unchanged as text.
type MockExtractor struct {
	Types     []string
	ExtractFn func(content []byte) (string, error)
}

// NewMockExtractor creates a mock extractor for the given file types
func NewMockExtractor(types ...string) *MockExtractor {
	if len(types) == 0 {
		types = []string{"txt"}
	}
	return &MockExtractor{Types: types}
}

func (m *MockExtractor) Extract(ctx context.Context, content []byte) (string, error) {
	if m.ExtractFn != nil {
		return m.ExtractFn(content)
	}
	return string(content), nil
}

func (m *MockExtractor) SupportedTypes() []string {
	return m.Types
}

func (m *MockExtractor) Priority() int {
	return 100
}

// MockExtractorRegistry is a mock implementation of ExtractorRegistry for testing.
// It matches file types exactly, without priorities.
type MockExtractorRegistry struct {
	byType map[string]driven.TextExtractor
}

// NewMockExtractorRegistry creates a registry pre-loaded with extractors
func NewMockExtractorRegistry(extractors ...driven.TextExtractor) *MockExtractorRegistry {
	r := &MockExtractorRegistry{byType: make(map[string]driven.TextExtractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

func (m *MockExtractorRegistry) Register(extractor driven.TextExtractor) {
	for _, t := range extractor.SupportedTypes() {
		m.byType[strings.ToLower(t)] = extractor
	}
}

func (m *MockExtractorRegistry) Get(fileType string) driven.TextExtractor {
	return m.byType[strings.ToLower(fileType)]
}

func (m *MockExtractorRegistry) Supports(fileType string) bool {
	return m.Get(fileType) != nil
}

func (m *MockExtractorRegistry) List() []string {
	types := make([]string, 0, len(m.byType))
	for t := range m.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
