package extractors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.TextExtractor = (*PDF)(nil)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH (install poppler-utils)")

const pdfTool = "pdftotext"

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDF extracts text from PDF files with poppler's pdftotext.
type PDF struct {
	runner CommandRunner
}

// NewPDF creates a PDF extractor that runs the system pdftotext.
func NewPDF() *PDF {
	return &PDF{runner: execRunner{}}
}

// NewPDFWithRunner creates a PDF extractor with a custom command runner.
func NewPDFWithRunner(runner CommandRunner) *PDF {
	return &PDF{runner: runner}
}

// Extract spools the PDF to a temp file and reads pdftotext's stdout.
func (e *PDF) Extract(ctx context.Context, content []byte) (string, error) {
	if !bytes.Contains(content[:min(len(content), 1024)], []byte("%PDF-")) {
		return "", fmt.Errorf("%w: missing PDF header", domain.ErrExtraction)
	}

	tmp, err := os.CreateTemp("", "sercha-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, pdfTool, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if errors.Is(err, ErrPDFToolNotFound) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("%w: pdftotext failed: %v", domain.ErrExtraction, err)
	}

	// pdftotext separates pages with form feeds
	text := strings.ReplaceAll(string(out), "\f", "\n")
	return strings.TrimSpace(normaliseNewlines(text)), nil
}

func (e *PDF) SupportedTypes() []string {
	return []string{"pdf"}
}

func (e *PDF) Priority() int {
	return 50
}

// CheckPDFTool reports whether pdftotext is available on this host.
func CheckPDFTool() error {
	if _, err := exec.LookPath(pdfTool); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}
