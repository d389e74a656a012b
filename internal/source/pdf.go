package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// textBlock 内容流中的 BT ... ET 文本块
	textBlock = regexp.MustCompile(`(?s)BT(.*?)ET`)

	// showOp Tj和'操作符显示的字符串，或TJ操作符显示的字符串数组
	showOp = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)\s*(?:Tj|')|\[((?:\\.|[^\]])*)\]\s*TJ`)

	// arrayString 字符串数组中的单个字符串
	arrayString = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

	pageDigits = regexp.MustCompile(`\d+`)
)

// PDFParser PDF解析器
// 使用pdfcpu导出每页解码后的内容流，再从中提取文本操作符里的字符串
type PDFParser struct {
	conf *model.Configuration
}

// NewPDFParser 创建PDF解析器
func NewPDFParser() Parser {
	return &PDFParser{conf: model.NewDefaultConfiguration()}
}

// Parse 解析PDF文件
func (p *PDFParser) Parse(filePath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractContentFile(filePath, tmpDir, nil, p.conf); err != nil {
		return "", fmt.Errorf("failed to extract content from PDF: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted content dir: %w", err)
	}

	// 文件名中带页码，排序后即为页面顺序
	sort.Slice(entries, func(i, j int) bool {
		return pageOrderKey(entries[i].Name()) < pageOrderKey(entries[j].Name())
	})

	var pages []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, e.Name()))
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(extractText(data)); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", fmt.Errorf("no text content found in PDF")
	}
	return strings.Join(pages, "\n\n"), nil
}

// ParseReader 从Reader解析PDF，内容先写入临时文件
func (p *PDFParser) ParseReader(r io.Reader, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "source-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to buffer PDF: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	return p.Parse(tmp.Name())
}

// pageOrderKey 用零填充的页码排序，避免 page_10 排在 page_2 前面
func pageOrderKey(name string) string {
	return pageDigits.ReplaceAllStringFunc(name, func(d string) string {
		if len(d) >= 8 {
			return d
		}
		return strings.Repeat("0", 8-len(d)) + d
	})
}

// extractText 从内容流中提取文本，每个文本块一行
func extractText(content []byte) string {
	var lines []string
	for _, block := range textBlock.FindAllSubmatch(content, -1) {
		var b strings.Builder

		for _, m := range showOp.FindAllSubmatch(block[1], -1) {
			if m[2] == nil {
				b.WriteString(unescapePDFString(m[1]))
				continue
			}
			for _, str := range arrayString.FindAllSubmatch(m[2], -1) {
				b.WriteString(unescapePDFString(str[1]))
			}
		}

		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// unescapePDFString 处理PDF字符串中的反斜杠转义
func unescapePDFString(raw []byte) string {
	var out bytes.Buffer
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			out.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			out.WriteByte('\n')
		case 'r':
			out.WriteByte('\r')
		case 't':
			out.WriteByte('\t')
		default:
			out.WriteByte(raw[i])
		}
	}
	return out.String()
}
