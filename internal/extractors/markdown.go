package extractors

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.TextExtractor = (*Markdown)(nil)

var (
	mdCodeFence    = regexp.MustCompile("(?s)```.*?```")
	mdInlineCode   = regexp.MustCompile("`([^`]+)`")
	mdImage        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLink         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeading      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBlockquote   = regexp.MustCompile(`(?m)^>\s*`)
	mdRule         = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	mdBullet       = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdNumbered     = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	mdEmphasis     = regexp.MustCompile(`(\*\*|__|\*|_)([^*_\n]+)(\*\*|__|\*|_)`)
	mdHTMLTag      = regexp.MustCompile(`<[^<]+?>`)
	mdBlankRunsOf3 = regexp.MustCompile(`\n{3,}`)
)

// Markdown renders Markdown source down to its readable text.
type Markdown struct{}

// NewMarkdown creates a Markdown extractor.
func NewMarkdown() *Markdown {
	return &Markdown{}
}

func (e *Markdown) Extract(_ context.Context, content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: markdown is not valid UTF-8", domain.ErrExtraction)
	}
	return stripMarkdown(normaliseNewlines(string(content))), nil
}

func (e *Markdown) SupportedTypes() []string {
	return []string{"md", "markdown"}
}

func (e *Markdown) Priority() int {
	return 50
}

// stripMarkdown removes formatting syntax while keeping code, link and emphasis text.
func stripMarkdown(content string) string {
	content = mdCodeFence.ReplaceAllStringFunc(content, func(block string) string {
		block = strings.TrimPrefix(block, "```")
		block = strings.TrimSuffix(block, "```")
		// Drop the info string on the opening fence line
		if i := strings.Index(block, "\n"); i >= 0 {
			block = block[i+1:]
		}
		return block
	})
	content = mdInlineCode.ReplaceAllString(content, "$1")
	content = mdImage.ReplaceAllString(content, "")
	content = mdLink.ReplaceAllString(content, "$1")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdBlockquote.ReplaceAllString(content, "")
	content = mdRule.ReplaceAllString(content, "")
	content = mdBullet.ReplaceAllString(content, "")
	content = mdNumbered.ReplaceAllString(content, "")
	content = mdEmphasis.ReplaceAllString(content, "$2")
	content = mdHTMLTag.ReplaceAllString(content, "")
	content = mdBlankRunsOf3.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
