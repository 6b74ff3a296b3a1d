package extractors

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

type fakeRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.name = name
	f.args = args
	return f.output, f.err
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestPlaintext_Extract(t *testing.T) {
	text, err := NewPlaintext().Extract(context.Background(), []byte("line one\r\nline two\rline three"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\nline three", text)
}

func TestPlaintext_InvalidUTF8(t *testing.T) {
	_, err := NewPlaintext().Extract(context.Background(), []byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestMarkdown_Extract(t *testing.T) {
	src := "# Title\n\nSome **bold** and *italic* text with a [link](http://x.y).\n\n" +
		"- item one\n- item two\n\n1. first\n\n> quoted\n\n```go\nfmt.Println(1)\n```\n\n![img](a.png) `inline`\n"

	text, err := NewMarkdown().Extract(context.Background(), []byte(src))
	require.NoError(t, err)

	assert.Contains(t, text, "Title")
	assert.NotContains(t, text, "#")
	assert.Contains(t, text, "Some bold and italic text with a link.")
	assert.Contains(t, text, "item one")
	assert.Contains(t, text, "first")
	assert.Contains(t, text, "quoted")
	assert.Contains(t, text, "fmt.Println(1)")
	assert.Contains(t, text, "inline")
	assert.NotContains(t, text, "http://x.y")
	assert.NotContains(t, text, "a.png")
	assert.NotContains(t, text, "```")
}

func TestHTML_Extract(t *testing.T) {
	src := `<html><head><title>T</title><style>body{color:red}</style></head>
<body><header>Top</header><script>alert(1)</script><p>Fish &amp; chips&nbsp;&lt;3</p><p>Second</p></body></html>`

	text, err := NewHTML().Extract(context.Background(), []byte(src))
	require.NoError(t, err)

	assert.Contains(t, text, "Top")
	assert.Contains(t, text, "Fish & chips")
	assert.Contains(t, text, "<3")
	assert.Contains(t, text, "Second")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "<p>")
}

func TestDOCX_Extract(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>In a table</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
<w:p><w:r><w:t>Last</w:t><w:tab/><w:t>para</w:t></w:r></w:p>
</w:body></w:document>`
	content := buildZip(t, map[string]string{"word/document.xml": doc})

	text, err := NewDOCX().Extract(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nIn a table\nLast\tpara", text)
}

func TestDOCX_Invalid(t *testing.T) {
	_, err := NewDOCX().Extract(context.Background(), []byte("not a zip"))
	assert.ErrorIs(t, err, domain.ErrExtraction)

	noBody := buildZip(t, map[string]string{"other.xml": "<x/>"})
	_, err = NewDOCX().Extract(context.Background(), noBody)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestXLSX_Extract(t *testing.T) {
	shared := `<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
<si><t>Name</t></si><si><t>Age</t></si><si><r><t>Ada </t></r><r><t>Lovelace</t></r></si></sst>`
	sheet1 := `<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>
<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2"><v>36</v></c></row>
<row r="3"><c r="A3" t="str"><v>  </v></c></row>
</sheetData></worksheet>`
	sheet2 := `<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
<row r="1"><c r="A1" t="inlineStr"><is><t>Inline</t></is></c><c r="B1" t="b"><v>1</v></c></row>
</sheetData></worksheet>`
	content := buildZip(t, map[string]string{
		"xl/sharedStrings.xml":      shared,
		"xl/worksheets/sheet2.xml":  sheet2,
		"xl/worksheets/sheet1.xml":  sheet1,
		"xl/worksheets/_rels/x.xml": "<r/>",
	})

	text, err := NewXLSX().Extract(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, "Name Age\nAda Lovelace 36\nInline TRUE", text)
}

func TestXLSX_BadSharedIndex(t *testing.T) {
	sheet := `<worksheet><sheetData><row><c t="s"><v>7</v></c></row></sheetData></worksheet>`
	content := buildZip(t, map[string]string{"xl/worksheets/sheet1.xml": sheet})

	_, err := NewXLSX().Extract(context.Background(), content)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestXLS_AlwaysFails(t *testing.T) {
	_, err := NewXLS().Extract(context.Background(), []byte{0xd0, 0xcf, 0x11, 0xe0})
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestPDF_Extract(t *testing.T) {
	runner := &fakeRunner{output: []byte("Page one\fPage two\n")}
	text, err := NewPDFWithRunner(runner).Extract(context.Background(), []byte("%PDF-1.4 fake"))
	require.NoError(t, err)

	assert.Equal(t, "Page one\nPage two", text)
	assert.Equal(t, "pdftotext", runner.name)
	require.NotEmpty(t, runner.args)
	assert.Equal(t, "-", runner.args[len(runner.args)-1])
}

func TestPDF_Errors(t *testing.T) {
	_, err := NewPDFWithRunner(&fakeRunner{}).Extract(context.Background(), []byte("plain text"))
	assert.ErrorIs(t, err, domain.ErrExtraction)

	_, err = NewPDFWithRunner(&fakeRunner{err: errors.New("crashed")}).Extract(context.Background(), []byte("%PDF-1.7"))
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.Contains(t, err.Error(), "pdftotext failed")

	_, err = NewPDFWithRunner(&fakeRunner{err: ErrPDFToolNotFound}).Extract(context.Background(), []byte("%PDF-1.7"))
	assert.ErrorIs(t, err, ErrPDFToolNotFound)
}
