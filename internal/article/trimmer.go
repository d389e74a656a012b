package article

import (
	"regexp"
	"strings"
)

// sentenceEnd 句末标点，后面可以跟空白和紧邻的引用标记
var sentenceEnd = regexp.MustCompile(`[.!?](?:\s*\[` + citationNumber + `\](?:[ \t]*\[` + citationNumber + `\])*)?`)

// TrimIncomplete 删除文本末尾未完成的句子及其悬挂的引用
// 文本先做引用分组拆分和去重，然后截断到最后一个完整句子（含其引用）为止。
// 找不到任何句末标点时返回空字符串，调用方应将其视为"没有可用内容"。
func TrimIncomplete(text string) string {
	text = canonicalCitations(text)

	matches := sentenceEnd.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return ""
	}

	last := matches[len(matches)-1]
	return strings.TrimSpace(text[:last[1]])
}
