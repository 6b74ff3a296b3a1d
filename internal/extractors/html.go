package extractors

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.TextExtractor = (*HTML)(nil)

var (
	htmlSpaces     = regexp.MustCompile(`[ \t]+`)
	htmlBlankLines = regexp.MustCompile(`\n\s*\n(\s*\n)+`)
)

// HTML strips markup from HTML documents.
type HTML struct{}

// NewHTML creates an HTML extractor.
func NewHTML() *HTML {
	return &HTML{}
}

func (e *HTML) Extract(_ context.Context, content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: html is not valid UTF-8", domain.ErrExtraction)
	}

	text := string(content)
	text = removeHTMLBlocks(text, "script")
	text = removeHTMLBlocks(text, "style")
	text = removeHTMLBlocks(text, "head")
	text = stripHTMLTags(text)
	text = html.UnescapeString(text)
	text = normaliseNewlines(text)
	text = htmlSpaces.ReplaceAllString(text, " ")
	text = htmlBlankLines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func (e *HTML) SupportedTypes() []string {
	return []string{"html", "htm"}
}

func (e *HTML) Priority() int {
	return 50
}

// removeHTMLBlocks drops every <tag ...>...</tag> block, content included.
// An unterminated block is cut to the end of the document.
func removeHTMLBlocks(content, tagName string) string {
	endTag := "</" + tagName + ">"

	for {
		lower := strings.ToLower(content)
		start := indexStartTag(lower, tagName)
		if start == -1 {
			return content
		}
		end := strings.Index(lower[start:], endTag)
		if end == -1 {
			return content[:start]
		}
		content = content[:start] + " " + content[start+end+len(endTag):]
	}
}

// indexStartTag finds "<name" followed by '>', '/' or whitespace, so <head> does not match <header>.
func indexStartTag(lower, name string) int {
	open := "<" + name
	offset := 0
	for {
		i := strings.Index(lower[offset:], open)
		if i == -1 {
			return -1
		}
		i += offset
		next := i + len(open)
		if next >= len(lower) {
			return -1
		}
		switch lower[next] {
		case '>', '/', ' ', '\t', '\n', '\r':
			return i
		}
		offset = next
	}
}

// stripHTMLTags replaces each tag with a space so adjacent words stay apart.
func stripHTMLTags(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	inTag := false

	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
