package article

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// RenderHTML 将文档渲染为HTML片段
// 标题自动生成锚点，表格使用Markdown表格扩展渲染
func RenderHTML(doc *Document) []byte {
	return RenderMarkdown(Serialize(doc))
}

// RenderMarkdown 将Markdown文本渲染为HTML
func RenderMarkdown(text string) []byte {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	node := mdParser.Parse([]byte(text))

	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})

	return markdown.Render(node, renderer)
}
