package source

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		filename string
		expected ContentType
	}{
		{"notes.md", Markdown},
		{"notes.MARKDOWN", Markdown},
		{"notes.txt", PlainText},
		{"paper.pdf", PDF},
		{"slides.pptx", Unknown},
		{"noext", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectContentType(tt.filename))
		})
	}
}

func TestParserFactory(t *testing.T) {
	p, err := ParserFactory("a.md")
	require.NoError(t, err)
	assert.IsType(t, &MarkdownParser{}, p)

	p, err = ParserFactory("a.pdf")
	require.NoError(t, err)
	assert.IsType(t, &PDFParser{}, p)

	_, err = ParserFactory("a.docx")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestMarkdownParser(t *testing.T) {
	content := "\uFEFF---\ntitle: Go\n---\n\n# History\r\n\r\nGo was released in 2009.[1]\r\n"

	result, err := NewMarkdownParser().ParseReader(strings.NewReader(content), "go.md")
	require.NoError(t, err)
	assert.Equal(t, "# History\n\nGo was released in 2009.[1]\n", result)

	// 没有front matter时原样返回
	result, err = NewMarkdownParser().ParseReader(strings.NewReader("---\nnot closed"), "x.md")
	require.NoError(t, err)
	assert.Equal(t, "---\nnot closed", result)
}

func TestPlainTextParser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("This is test content.\r\nSecond line."), 0644))

	result, err := NewPlainTextParser().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "This is test content.\nSecond line.", result)

	_, err = NewPlainTextParser().Parse(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestExtractText(t *testing.T) {
	stream := []byte(`q
BT /F1 12 Tf 72 720 Td (History of Go) Tj ET
BT 72 700 Td [(Go was ) -250 (released \(2009\).)] TJ ET
BT 72 680 Td (A\\B) Tj T* (second)' ET
Q`)

	assert.Equal(t, "History of Go\nGo was released (2009).\nA\\Bsecond", extractText(stream))
	assert.Empty(t, extractText([]byte("q 1 0 0 1 0 0 cm Q")))
}

func TestPageOrderKey(t *testing.T) {
	names := []string{"doc_Content_page_10.txt", "doc_Content_page_2.txt"}
	assert.Less(t, pageOrderKey(names[1]), pageOrderKey(names[0]))
}

func TestPDFParser(t *testing.T) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(40, 10, "Hello from the source importer")

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))

	result, err := NewPDFParser().ParseReader(&buf, "hello.pdf")
	require.NoError(t, err)
	assert.Contains(t, result, "Hello from the source importer")
}
