package extractors

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.TextExtractor = (*DOCX)(nil)

// DOCX reads paragraph text from Word documents.
type DOCX struct{}

// NewDOCX creates a DOCX extractor.
func NewDOCX() *DOCX {
	return &DOCX{}
}

// Extract returns one line per paragraph, including paragraphs inside tables.
func (e *DOCX) Extract(_ context.Context, content []byte) (string, error) {
	reader, err := openArchive(content, "docx")
	if err != nil {
		return "", err
	}

	body, err := readPart(reader, "word/document.xml")
	if err != nil {
		return "", err
	}
	if body == nil {
		return "", fmt.Errorf("%w: docx has no word/document.xml", domain.ErrExtraction)
	}
	return parseDocumentXML(body)
}

func (e *DOCX) SupportedTypes() []string {
	return []string{"docx"}
}

func (e *DOCX) Priority() int {
	return 50
}

// parseDocumentXML walks the token stream: w:t carries text, w:tab and w:br are whitespace,
// and the end of each w:p closes a line.
func parseDocumentXML(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var (
		out    strings.Builder
		line   strings.Builder
		inText bool
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: malformed document.xml: %v", domain.ErrExtraction, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteByte('\t')
			case "br", "cr":
				line.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteString(line.String())
				out.WriteByte('\n')
				line.Reset()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	out.WriteString(line.String())

	return strings.TrimSpace(out.String()), nil
}
