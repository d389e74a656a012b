package article

import (
	"regexp"
	"strings"
)

var (
	// paragraphBreak 两个及以上连续换行视为段落边界
	paragraphBreak = regexp.MustCompile(`\n{2,}`)

	// punctuationOnly 只包含标点符号的行
	punctuationOnly = regexp.MustCompile(`^\s*[^\p{L}\p{N}_\s]+\s*$`)

	// artifactPatterns 生成文本中常见的代码注释和调试残留
	artifactPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*//.*$`),
		regexp.MustCompile(`^\s*/\*.*?\*/\s*$`),
		regexp.MustCompile(`^\s*TODO:.*$`),
		regexp.MustCompile(`^\s*FIXME:.*$`),
		regexp.MustCompile(`^\s*DEBUG:.*$`),
	}
)

// Sanitize 清理生成文本，返回段落序列
// 表格段落原样保留；标题行总是单独成段
func Sanitize(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	paragraphs := paragraphBreak.Split(text, -1)

	result := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		result = append(result, cleanParagraph(p)...)
	}
	return result
}

// cleanParagraph 清理单个段落
// 标题行被拆分出来，剩余的行按表格或普通段落处理
func cleanParagraph(paragraph string) []string {
	var out []string
	var body []string

	flush := func() {
		if len(body) == 0 {
			return
		}
		if cleaned := cleanBody(body); cleaned != "" {
			out = append(out, cleaned)
		}
		body = nil
	}

	for _, line := range strings.Split(paragraph, "\n") {
		if isHeadingLine(line) {
			flush()
			out = append(out, strings.TrimSpace(line))
			continue
		}
		body = append(body, line)
	}
	flush()

	return out
}

// cleanBody 处理非标题行组成的段落
func cleanBody(lines []string) string {
	if isTable(lines) {
		// 表格不能合并为一行
		return strings.Trim(strings.Join(lines, "\n"), "\n")
	}

	seen := make(map[string]bool, len(lines))
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if seen[line] {
			continue
		}
		seen[line] = true

		line = strings.TrimSpace(line)
		if line == "" || punctuationOnly.MatchString(line) || isArtifact(line) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, " ")
}

// isTable 任意一行包含 | 即视为表格
func isTable(lines []string) bool {
	for _, line := range lines {
		if strings.Contains(line, "|") {
			return true
		}
	}
	return false
}

// isHeadingLine 以 # 开头的行总是标题，即使包含 |
func isHeadingLine(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "#")
}

func isArtifact(line string) bool {
	for _, pattern := range artifactPatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}
