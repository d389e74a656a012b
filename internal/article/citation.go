package article

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// 引用编号从1开始，最多9位，避免整数溢出
const citationNumber = `[1-9]\d{0,8}`

var (
	// singleCitation 单个引用标记，例如 [3]
	singleCitation = regexp.MustCompile(`\[(` + citationNumber + `)\]`)

	// groupedCitation 分组引用标记，例如 [1, 2, 5]
	groupedCitation = regexp.MustCompile(`\[\s*(` + citationNumber + `(?:\s*,\s*` + citationNumber + `)+)\s*\]`)

	// anyCitation 单个或分组引用标记
	anyCitation = regexp.MustCompile(`\[\s*` + citationNumber + `(?:\s*,\s*` + citationNumber + `)*\s*\]`)

	// citationRun 只以空白分隔的连续引用标记
	citationRun = regexp.MustCompile(`\[` + citationNumber + `\](?:[ \t]*\[` + citationNumber + `\])*`)
)

// ExtractIndices 按出现顺序提取所有单个引用编号，不去重
// 分组形式需要先用 SplitCitationGroups 拆分
func ExtractIndices(text string) []int {
	matches := singleCitation.FindAllStringSubmatch(text, -1)
	indices := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		indices = append(indices, n)
	}
	return indices
}

// StripCitations 移除所有引用标记
func StripCitations(text string) string {
	return anyCitation.ReplaceAllString(text, "")
}

// RemapCitations 按映射表改写引用编号
// 新旧编号集合可能重叠（例如1和2互换），因此先把每个标记改写为以旧编号
// 为键的占位符，再把占位符统一改写为新编号。映射表中不存在的编号保持不变。
func RemapCitations(text string, oldToNew map[int]int) string {
	if len(oldToNew) == 0 || !singleCitation.MatchString(text) {
		return text
	}

	openRune, closeRune := placeholderRunes(text)
	openStr, closeStr := string(openRune), string(closeRune)

	staged := singleCitation.ReplaceAllStringFunc(text, func(marker string) string {
		n, err := strconv.Atoi(marker[1 : len(marker)-1])
		if err != nil {
			return marker
		}
		if _, ok := oldToNew[n]; !ok {
			return marker
		}
		return openStr + strconv.Itoa(n) + closeStr
	})

	placeholder := regexp.MustCompile(regexp.QuoteMeta(openStr) + `(\d+)` + regexp.QuoteMeta(closeStr))
	return placeholder.ReplaceAllStringFunc(staged, func(token string) string {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(token, openStr), closeStr))
		if err != nil {
			return token
		}
		return "[" + strconv.Itoa(oldToNew[n]) + "]"
	})
}

// placeholderRunes 选取文本中未出现过的两个私有区字符作为占位符边界
func placeholderRunes(text string) (rune, rune) {
	var picked []rune
	for r := rune(0xE000); r <= 0xF8FF && len(picked) < 2; r++ {
		if !strings.ContainsRune(text, r) {
			picked = append(picked, r)
		}
	}
	if len(picked) < 2 {
		// 私有区字符全部被占用时退回到替换字符，实际不会发生
		return utf8.RuneError, utf8.RuneError
	}
	return picked[0], picked[1]
}

// SplitCitationGroups 将 [a, b, c] 拆分为 [a] [b] [c]
func SplitCitationGroups(text string) string {
	return groupedCitation.ReplaceAllStringFunc(text, func(group string) string {
		inner := groupedCitation.FindStringSubmatch(group)[1]
		parts := strings.Split(inner, ",")
		markers := make([]string, 0, len(parts))
		for _, p := range parts {
			markers = append(markers, "["+strings.TrimSpace(p)+"]")
		}
		return strings.Join(markers, " ")
	})
}

// DedupeAdjacentCitations 对连续的引用标记去重并按编号升序排列
// 标记之间只允许出现空格或制表符
func DedupeAdjacentCitations(text string) string {
	return citationRun.ReplaceAllStringFunc(text, func(run string) string {
		indices := uniqueSorted(ExtractIndices(run))
		var b strings.Builder
		for _, n := range indices {
			b.WriteString("[")
			b.WriteString(strconv.Itoa(n))
			b.WriteString("]")
		}
		return b.String()
	})
}

// DropOutOfRangeCitations 删除编号大于limit的引用标记
// 用于生成结果引用了不存在的来源时
func DropOutOfRangeCitations(text string, limit int) string {
	text = SplitCitationGroups(text)
	return singleCitation.ReplaceAllStringFunc(text, func(marker string) string {
		n, err := strconv.Atoi(marker[1 : len(marker)-1])
		if err != nil {
			return marker
		}
		if n > limit {
			return ""
		}
		return marker
	})
}

// canonicalCitations 拆分分组并对连续标记去重
func canonicalCitations(text string) string {
	return DedupeAdjacentCitations(SplitCitationGroups(text))
}

// NormalizeCitations 对整棵文档树做引用规范化，返回同一文档
func NormalizeCitations(doc *Document) *Document {
	NormalizeCitationsWithMap(doc)
	return doc
}

// NormalizeCitationsWithMap 对整棵文档树做引用规范化
// 按先序遍历中首次出现的顺序把引用重新编号为 1..k，返回旧编号到新编号的映射。
// 只改写章节正文，不改变标题和树结构。对已经规范化的文档是幂等的。
func NormalizeCitationsWithMap(doc *Document) map[int]int {
	mapping := make(map[int]int)
	if doc == nil {
		return mapping
	}

	doc.Walk(func(_ []string, s *Section) {
		s.Content = canonicalCitations(s.Content)
	})

	next := 1
	doc.Walk(func(_ []string, s *Section) {
		for _, n := range ExtractIndices(s.Content) {
			if _, seen := mapping[n]; !seen {
				mapping[n] = next
				next++
			}
		}
	})

	doc.Walk(func(_ []string, s *Section) {
		s.Content = DedupeAdjacentCitations(RemapCitations(s.Content, mapping))
	})

	return mapping
}

// CitationIndices 返回文档中出现过的全部引用编号（去重、升序）
func CitationIndices(doc *Document) []int {
	var all []int
	doc.Walk(func(_ []string, s *Section) {
		all = append(all, ExtractIndices(SplitCitationGroups(s.Content))...)
	})
	return uniqueSorted(all)
}

func uniqueSorted(indices []int) []int {
	seen := make(map[int]bool, len(indices))
	out := make([]int, 0, len(indices))
	for _, n := range indices {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
