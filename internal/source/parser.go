package source

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType 不支持的文件类型
var ErrUnsupportedType = errors.New("unsupported source type")

// Parser 来源文件解析器接口
// 把导入的文件转换为Markdown文本，标题行原样保留
type Parser interface {
	// Parse 解析文件，返回文本内容
	Parse(filePath string) (string, error)

	// ParseReader 从Reader解析，filename用于确定文件类型
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType 来源文件的内容类型
type ContentType string

const (
	PDF       ContentType = "pdf"
	Markdown  ContentType = "markdown"
	PlainText ContentType = "plaintext"
	Unknown   ContentType = "unknown"
)

// ParserFactory 根据文件扩展名创建解析器
func ParserFactory(filename string) (Parser, error) {
	switch DetectContentType(filename) {
	case PDF:
		return NewPDFParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, ErrUnsupportedType
	}
}

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(filename string) ContentType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// parseFile 打开文件后交给ParseReader
func parseFile(p Parser, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	return p.ParseReader(file, filePath)
}
