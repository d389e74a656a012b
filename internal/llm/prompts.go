package llm

import (
	"fmt"
	"strings"
)

// WriterSystemPrompt 默认的系统提示词
const WriterSystemPrompt = "You are an experienced Wikipedia editor. Write neutral, well sourced prose in Markdown and never invent sources."

// 提示词模板，变量用 {{.Name}} 形式占位
const (
	// DraftSectionTemplate 撰写单个章节
	// 变量：{{.Topic}} {{.Section}} {{.Context}} {{.Sources}}
	DraftSectionTemplate = `Write a Wikipedia-style section about the topic "{{.Topic}}".
The section title is "{{.Section}}". Use "#" for the section title, "##" for subsections and so on.
Only use the numbered sources below and cite them inline, for example "Go was released in 2009.[1][3]".
Do not include a summary, conclusion or references section.

Existing article for context:
{{.Context}}

Sources:
{{.Sources}}

Write the section now:`

	// PolishTemplate 删除全文重复信息
	// 变量：{{.Article}}
	PolishTemplate = `You are a faithful text editor that is good at finding repeated information in the article and deleting it so that nothing is said twice.
Do not delete any non-repeated part. Keep the inline citations and the article structure (indicated by "#", "##", etc.).

The draft article:
{{.Article}}

Your revised article:`

	// LeadTemplate 撰写导语
	// 变量：{{.Topic}} {{.Article}}
	LeadTemplate = `Write the lead section for the article about "{{.Topic}}" with the following guidelines:
1. It should stand on its own as a concise overview of the topic, establish context, explain why the topic is notable and summarize the most important points.
2. It should contain no more than four well-composed paragraphs and no headings.
3. Keep inline citations from the article where appropriate, for example "Washington, D.C., is the capital of the United States.[1][3]".

The draft article:
{{.Article}}

Write the lead section:`

	// OutlineTemplate 生成或改进大纲
	// 变量：{{.Topic}} {{.Outline}}
	OutlineTemplate = `Improve the outline of a Wikipedia page about "{{.Topic}}".
Use "#" for section titles, "##" for subsection titles and so on. Output only the headings, nothing else.

Current outline:
{{.Outline}}

Improved outline:`
)

// PromptVars 模板变量
type PromptVars map[string]string

// RenderPrompt 用变量替换模板中的占位符
func RenderPrompt(template string, vars PromptVars) string {
	prompt := template
	for name, value := range vars {
		prompt = strings.ReplaceAll(prompt, "{{."+name+"}}", value)
	}
	return prompt
}

// FormatSources 按引用编号格式化参考来源，编号从1开始
func FormatSources(snippets []string) string {
	if len(snippets) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, s := range snippets {
		b.WriteString(fmt.Sprintf("[%d] %s\n", i+1, strings.TrimSpace(s)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// DraftSectionPrompt 构建章节撰写提示词
func DraftSectionPrompt(topic, section, context string, sources []string) string {
	if strings.TrimSpace(context) == "" {
		context = "(empty)"
	}
	return RenderPrompt(DraftSectionTemplate, PromptVars{
		"Topic":   topic,
		"Section": section,
		"Context": context,
		"Sources": FormatSources(sources),
	})
}

// PolishPrompt 构建润色提示词
func PolishPrompt(article string) string {
	return RenderPrompt(PolishTemplate, PromptVars{"Article": article})
}

// LeadPrompt 构建导语提示词
func LeadPrompt(topic, article string) string {
	return RenderPrompt(LeadTemplate, PromptVars{"Topic": topic, "Article": article})
}

// OutlinePrompt 构建大纲提示词
func OutlinePrompt(topic, outline string) string {
	if strings.TrimSpace(outline) == "" {
		outline = "(empty)"
	}
	return RenderPrompt(OutlineTemplate, PromptVars{"Topic": topic, "Outline": outline})
}
