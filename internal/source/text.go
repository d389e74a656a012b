package source

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownParser Markdown解析器
// 文本原样返回，只去掉BOM、统一换行符并移除YAML front matter
type MarkdownParser struct{}

// NewMarkdownParser 创建Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件
func (p *MarkdownParser) Parse(filePath string) (string, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析Markdown内容
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (string, error) {
	text, err := readText(r)
	if err != nil {
		return "", fmt.Errorf("failed to read markdown content: %w", err)
	}
	return stripFrontMatter(text), nil
}

// PlainTextParser 纯文本解析器
type PlainTextParser struct{}

// NewPlainTextParser 创建纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 解析纯文本文件
func (p *PlainTextParser) Parse(filePath string) (string, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析纯文本
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) (string, error) {
	text, err := readText(r)
	if err != nil {
		return "", fmt.Errorf("failed to read text content: %w", err)
	}
	return text, nil
}

func readText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	text := strings.TrimPrefix(string(data), "\uFEFF")
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}

// stripFrontMatter 移除开头以 --- 包围的元数据块
func stripFrontMatter(text string) string {
	if !strings.HasPrefix(text, "---\n") {
		return text
	}
	end := strings.Index(text[4:], "\n---")
	if end < 0 {
		return text
	}
	rest := text[4+end+4:]
	return strings.TrimLeft(rest, "\n")
}
