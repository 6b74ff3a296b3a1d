package extractors

import (
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var (
	_ driven.TextExtractor = (*XLSX)(nil)
	_ driven.TextExtractor = (*XLS)(nil)
)

const worksheetPrefix = "xl/worksheets/sheet"

// XLSX reads cell values from Excel workbooks, one line per non-blank row.
type XLSX struct{}

// NewXLSX creates an XLSX extractor.
func NewXLSX() *XLSX {
	return &XLSX{}
}

// Extract walks every worksheet in order, joining each row's cells with spaces.
func (e *XLSX) Extract(_ context.Context, content []byte) (string, error) {
	reader, err := openArchive(content, "xlsx")
	if err != nil {
		return "", err
	}

	var shared []string
	if data, err := readPart(reader, "xl/sharedStrings.xml"); err != nil {
		return "", err
	} else if data != nil {
		if shared, err = parseSharedStrings(data); err != nil {
			return "", err
		}
	}

	var sheets []string
	for _, file := range reader.File {
		if strings.HasPrefix(file.Name, worksheetPrefix) && strings.HasSuffix(file.Name, ".xml") {
			sheets = append(sheets, file.Name)
		}
	}
	if len(sheets) == 0 {
		return "", fmt.Errorf("%w: xlsx has no worksheets", domain.ErrExtraction)
	}
	sort.Slice(sheets, func(i, j int) bool { return sheetNumber(sheets[i]) < sheetNumber(sheets[j]) })

	var out strings.Builder
	for _, name := range sheets {
		data, err := readPart(reader, name)
		if err != nil {
			return "", err
		}
		rows, err := parseSheetRows(data, shared)
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		for _, row := range rows {
			out.WriteString(row)
			out.WriteByte('\n')
		}
	}
	return strings.TrimSpace(out.String()), nil
}

func (e *XLSX) SupportedTypes() []string {
	return []string{"xlsx"}
}

func (e *XLSX) Priority() int {
	return 50
}

// sheetNumber orders "xl/worksheets/sheet10.xml" after "sheet9.xml".
func sheetNumber(name string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, worksheetPrefix), ".xml"))
	if err != nil {
		return 1 << 30
	}
	return n
}

type richText struct {
	Text string `xml:"t"`
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

func (r richText) String() string {
	if len(r.Runs) == 0 {
		return r.Text
	}
	var b strings.Builder
	b.WriteString(r.Text)
	for _, run := range r.Runs {
		b.WriteString(run.Text)
	}
	return b.String()
}

type sharedStringsXML struct {
	Items []richText `xml:"si"`
}

func parseSharedStrings(data []byte) ([]string, error) {
	var sst sharedStringsXML
	if err := xml.Unmarshal(data, &sst); err != nil {
		return nil, fmt.Errorf("%w: malformed sharedStrings.xml: %v", domain.ErrExtraction, err)
	}
	out := make([]string, len(sst.Items))
	for i, item := range sst.Items {
		out[i] = item.String()
	}
	return out, nil
}

type worksheetXML struct {
	Rows []struct {
		Cells []struct {
			Type   string   `xml:"t,attr"`
			Value  string   `xml:"v"`
			Inline richText `xml:"is"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

func parseSheetRows(data []byte, shared []string) ([]string, error) {
	var sheet worksheetXML
	if err := xml.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("%w: malformed worksheet: %v", domain.ErrExtraction, err)
	}

	rows := make([]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		values := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			var v string
			switch cell.Type {
			case "s":
				idx, err := strconv.Atoi(strings.TrimSpace(cell.Value))
				if err != nil || idx < 0 || idx >= len(shared) {
					return nil, fmt.Errorf("%w: bad shared string index %q", domain.ErrExtraction, cell.Value)
				}
				v = shared[idx]
			case "inlineStr":
				v = cell.Inline.String()
			case "b":
				v = strings.ToUpper(strconv.FormatBool(cell.Value == "1"))
			default:
				v = cell.Value
			}
			values = append(values, v)
		}
		line := strings.Join(values, " ")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}
	return rows, nil
}

// XLS claims the legacy binary Excel type so uploads fail as extraction errors
// rather than as unsupported types.
type XLS struct{}

// NewXLS creates the legacy Excel extractor.
func NewXLS() *XLS {
	return &XLS{}
}

func (e *XLS) Extract(_ context.Context, _ []byte) (string, error) {
	return "", fmt.Errorf("%w: legacy .xls workbooks cannot be read, save the file as .xlsx", domain.ErrExtraction)
}

func (e *XLS) SupportedTypes() []string {
	return []string{"xls"}
}

func (e *XLS) Priority() int {
	return 10
}
