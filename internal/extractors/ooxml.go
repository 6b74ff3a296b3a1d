package extractors

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// maxPartBytes caps a single decompressed archive member
const maxPartBytes = 64 << 20

// openArchive opens OOXML content as a zip archive.
func openArchive(content []byte, format string) (*zip.Reader, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid %s file: %v", domain.ErrExtraction, format, err)
	}
	return reader, nil
}

// readPart returns the bytes of a named archive member, or nil if it does not exist.
func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", domain.ErrExtraction, name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, maxPartBytes+1))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrExtraction, name, err)
		}
		if len(data) > maxPartBytes {
			return nil, fmt.Errorf("%w: %s is too large", domain.ErrExtraction, name)
		}
		return data, nil
	}
	return nil, nil
}
