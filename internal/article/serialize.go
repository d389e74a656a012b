package article

import (
	"strings"
)

// Serialize 将文档按先序遍历还原为扁平的Markdown文本
// 标题级别由节点深度重新计算，不依赖解析时的原始级别
func Serialize(doc *Document) string {
	if doc == nil {
		return ""
	}

	var b strings.Builder
	writeSections(&b, doc.sections(), 1)
	return strings.TrimSpace(b.String())
}

// SerializeSection 序列化单个章节及其子树，level为该章节的标题级别
func SerializeSection(s *Section, level int) string {
	if s == nil {
		return ""
	}
	if level < 1 {
		level = 1
	}

	var b strings.Builder
	writeSection(&b, s, level)
	return strings.TrimSpace(b.String())
}

func writeSections(b *strings.Builder, m *Sections, level int) {
	m.Each(func(_ string, s *Section) {
		writeSection(b, s, level)
	})
}

func writeSection(b *strings.Builder, s *Section, level int) {
	b.WriteString(headingLine(level, s.Title))
	b.WriteString("\n\n")
	if content := strings.TrimSpace(s.Content); content != "" {
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	writeSections(b, s.children(), level+1)
}

// Outline 只输出标题层级，不包含正文
func Outline(doc *Document) string {
	if doc == nil {
		return ""
	}

	lines := make([]string, 0, doc.SectionCount())
	doc.Walk(func(path []string, s *Section) {
		lines = append(lines, headingLine(len(path), s.Title))
	})
	return strings.Join(lines, "\n")
}

func headingLine(level int, title string) string {
	return strings.Repeat("#", level) + " " + title
}
