package article

import (
	"strings"
)

// frame 解析栈中的一层，记录节点及其标题级别
type frame struct {
	node  *Section
	level int
}

// Parse 将以 # 标题分隔的文本解析为章节树
// 标题级别跳跃（例如 # 后直接出现 ###）不会报错，新标题总是挂在
// 最近一个级别更小的祖先下面。同一父节点下重复的标题以最后一次为准。
// 第一个标题之前的内容会被丢弃。
func Parse(text string) *Document {
	root := NewSection("", "")
	stack := []frame{{node: root, level: -1}}

	for _, para := range Sanitize(text) {
		if level, title, ok := parseHeading(para); ok {
			for len(stack) > 1 && stack[len(stack)-1].level >= level {
				stack = stack[:len(stack)-1]
			}
			section := NewSection(title, "")
			stack[len(stack)-1].node.children().Set(title, section)
			stack = append(stack, frame{node: section, level: level})
			continue
		}

		top := stack[len(stack)-1].node
		top.Content += para + "\n\n"
	}

	return NewDocumentFrom(root.Children)
}

// ParseSections 解析文本并返回顶层章节集合，用作合并时的更新片段
func ParseSections(text string) *Sections {
	return Parse(text).Children
}

// parseHeading 解析标题行，返回级别和标题文本
// 只接受单行段落，多行段落不会被当作标题
func parseHeading(line string) (int, string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "#") || strings.Contains(line, "\n") {
		return 0, "", false
	}

	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}

	title := strings.TrimSpace(line[level:])
	title = trimClosingHashes(title)
	return level, title, true
}

// trimClosingHashes 去掉ATX风格标题末尾的闭合 # 序列，例如 "Title ##"
func trimClosingHashes(title string) string {
	trimmed := strings.TrimRight(title, "#")
	if trimmed == title {
		return title
	}
	if trimmed == "" || strings.HasSuffix(trimmed, " ") || strings.HasSuffix(trimmed, "\t") {
		return strings.TrimSpace(trimmed)
	}
	// "C#" 这类标题中的 # 属于标题本身
	return title
}
