package article

import (
	"regexp"
	"strings"
)

// LeadTitle 导语章节的标题，总是位于顶层第一个
const LeadTitle = "summary"

// concludingPrefixes 生成结果中多余的总结性段落
var concludingPrefixes = []string{"Overall", "In summary", "In conclusion"}

// outlineDropped 大纲中不需要撰写正文的章节
var outlineDropped = []string{
	"See also", "Notes", "References", "External links", "Bibliography",
	"Further reading", "Summary", "Appendices", "Appendix",
}

// bulletLine 大纲中的列表项
var bulletLine = regexp.MustCompile(`^[-*+]\s+`)

// CleanUpSection 清理单个章节的生成结果
// 每个正文段落删除未完成的句子，去掉以总结性短语开头的段落，
// 并跳过 Summary / Conclusion 小节直到下一个标题。段落之间以空行分隔。
func CleanUpSection(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []string
	skipping := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		heading := strings.HasPrefix(line, "#")
		if !heading {
			line = TrimIncomplete(line)
			if line == "" {
				continue
			}
		}

		if skipping {
			if !heading {
				continue
			}
			skipping = false
		}

		if hasConcludingPrefix(line) {
			continue
		}
		if heading && isConcludingHeading(line) {
			skipping = true
			continue
		}
		out = append(out, line)
	}

	return strings.Join(out, "\n\n")
}

func hasConcludingPrefix(line string) bool {
	for _, prefix := range concludingPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func isConcludingHeading(line string) bool {
	_, title, ok := parseHeading(line)
	if !ok {
		return false
	}
	return strings.EqualFold(title, "Summary") || strings.EqualFold(title, "Conclusion")
}

// CleanUpOutline 清理生成的大纲
// 只保留标题行，列表项转换为比当前标题低一级的标题；遇到以主题为标题的行时
// 丢弃之前的内容；参考文献、延伸阅读等章节连同其子章节一并删除。
func CleanUpOutline(outline, topic string) string {
	outline = strings.ReplaceAll(outline, "\r\n", "\n")
	topicHeading := strings.ToLower(strings.TrimSpace(topic))

	var lines []string
	levels := []int{}
	current := 0
	for _, raw := range strings.Split(outline, "\n") {
		line := strings.TrimSpace(raw)

		level, title, ok := parseHeading(line)
		if !ok {
			if !bulletLine.MatchString(line) {
				continue
			}
			level = current + 1
			title = strings.TrimSpace(bulletLine.ReplaceAllString(line, ""))
		} else {
			current = level
		}

		if topicHeading != "" && strings.ToLower(title) == topicHeading {
			lines, levels = nil, nil
		}
		lines = append(lines, headingLine(level, title))
		levels = append(levels, level)
	}

	return strings.Join(dropOutlineSections(lines, levels), "\n")
}

// dropOutlineSections 删除不需要撰写的章节及其下属标题
func dropOutlineSections(lines []string, levels []int) []string {
	out := make([]string, 0, len(lines))
	dropLevel := 0
	for i, line := range lines {
		if dropLevel > 0 {
			if levels[i] > dropLevel {
				continue
			}
			dropLevel = 0
		}

		_, title, _ := parseHeading(line)
		if isDroppedOutlineTitle(title) {
			dropLevel = levels[i]
			continue
		}
		out = append(out, line)
	}
	return out
}

func isDroppedOutlineTitle(title string) bool {
	for _, name := range outlineDropped {
		if strings.EqualFold(title, name) {
			return true
		}
	}
	return false
}

// LimitWords 将文本限制在maxWords个单词以内，保留原有的换行
// 超出上限的行在上限处截断
func LimitWords(text string, maxWords int) string {
	if maxWords <= 0 {
		return ""
	}

	var lines []string
	count := 0
	for _, line := range strings.Split(text, "\n") {
		words := strings.Fields(line)
		if count+len(words) > maxWords {
			words = words[:maxWords-count]
		}
		count += len(words)
		lines = append(lines, strings.Join(words, " "))
		if count >= maxWords {
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// InsertLead 将导语作为第一个顶层章节写入文档，已有导语会被替换
func InsertLead(doc *Document, lead string) error {
	if doc == nil {
		return ErrNilDocument
	}
	doc.sections().InsertFront(LeadTitle, NewSection(LeadTitle, lead))
	return nil
}
