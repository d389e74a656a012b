package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fyerfyer/storm-article/api/middleware"
	"github.com/fyerfyer/storm-article/internal/article"
	"github.com/fyerfyer/storm-article/internal/cache"
	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/fyerfyer/storm-article/pkg/storage"
	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sirupsen/logrus"
)

// ExportFormat 导出格式
type ExportFormat string

const (
	FormatMarkdown ExportFormat = "md"
	FormatHTML     ExportFormat = "html"
	FormatPDF      ExportFormat = "pdf"
)

// ParseExportFormat 解析导出格式，空字符串视为Markdown
func ParseExportFormat(format string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ContentType 导出格式对应的MIME类型
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Rendered 渲染结果
type Rendered struct {
	Article *models.Article
	Format  ExportFormat
	Data    []byte
}

// Render 渲染文章当前版本
// 导出前删除空章节，结果按文章版本缓存
func (s *ArticleService) Render(ctx context.Context, id string, format ExportFormat) (*Rendered, error) {
	a, doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	key := cache.ArticleKey(a.ID, a.Version, string(format))
	if s.cache != nil {
		if cached, found, err := s.cache.Get(ctx, key); err == nil && found {
			return &Rendered{Article: a, Format: format, Data: cached}, nil
		}
	}

	refs, err := a.GetReferences()
	if err != nil {
		return nil, fmt.Errorf("failed to decode references: %w", err)
	}

	export := article.PruneEmpty(doc.Clone())
	markdown := exportMarkdown(export, refs)

	var data []byte
	switch format {
	case FormatMarkdown:
		data = []byte(markdown)
	case FormatHTML:
		data = article.RenderMarkdown(markdown)
	case FormatPDF:
		data, err = renderPDF(a.Topic, export, refs)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
			s.logger.WithError(err).WithField(middleware.FieldArticleID, a.ID).Warn("Failed to cache rendered article")
		}
	}

	return &Rendered{Article: a, Format: format, Data: data}, nil
}

// Export 渲染文章并保存到导出存储
func (s *ArticleService) Export(ctx context.Context, id string, format ExportFormat) (storage.FileInfo, error) {
	if s.storage == nil {
		return storage.FileInfo{}, ErrStorageUnavailable
	}

	rendered, err := s.Render(ctx, id, format)
	if err != nil {
		return storage.FileInfo{}, err
	}

	// 同一版本同一格式的导出使用固定的键，重复导出直接覆盖
	filename := fmt.Sprintf("%s-v%d.%s", slugify(rendered.Article.Topic), rendered.Article.Version, format)
	info, err := s.storage.Put(ctx, storage.ExportKey(id, filename), bytes.NewReader(rendered.Data))
	if err != nil {
		return storage.FileInfo{}, fmt.Errorf("failed to save export: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		middleware.FieldArticleID: id,
		"key":                     info.Key,
		"format":                  format,
		"size":                    info.Size,
	}).Info("Article exported")

	return info, nil
}

// ListExports 列出文章已保存的导出文件
func (s *ArticleService) ListExports(ctx context.Context, id string) ([]storage.FileInfo, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	if _, err := s.repo.GetByID(id); err != nil {
		return nil, err
	}
	return s.storage.List(ctx, storage.ExportPrefix(id))
}

// OpenExport 打开文章的一个导出文件，调用方负责关闭
func (s *ArticleService) OpenExport(ctx context.Context, id, name string) (io.ReadCloser, storage.FileInfo, error) {
	if s.storage == nil {
		return nil, storage.FileInfo{}, ErrStorageUnavailable
	}

	key := storage.ExportKey(id, name)
	info, err := s.storage.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, storage.FileInfo{}, fmt.Errorf("%w: %s", ErrExportNotFound, name)
		}
		return nil, storage.FileInfo{}, err
	}

	r, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, storage.FileInfo{}, err
	}
	return r, info, nil
}

// removeExports 删除文章的全部导出文件，失败只记录日志
func (s *ArticleService) removeExports(ctx context.Context, id string) {
	if s.storage == nil {
		return
	}
	n, err := storage.DeletePrefix(ctx, s.storage, storage.ExportPrefix(id))
	entry := s.logger.WithField(middleware.FieldArticleID, id)
	if err != nil {
		entry.WithError(err).Warn("Failed to remove article exports")
		return
	}
	if n > 0 {
		entry.WithField("count", n).Debug("Article exports removed")
	}
}

// exportMarkdown 序列化文章并在末尾附加参考文献列表
func exportMarkdown(doc *article.Document, refs []models.Reference) string {
	var b strings.Builder
	b.WriteString(article.Serialize(doc))

	if len(refs) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("# References\n\n")
		for _, ref := range refs {
			b.WriteString(fmt.Sprintf("[%d] %s\n", ref.Index, referenceLine(ref)))
		}
	}

	return strings.TrimSpace(b.String()) + "\n"
}

func referenceLine(ref models.Reference) string {
	switch {
	case ref.Title != "" && ref.URL != "":
		return ref.Title + ". " + ref.URL
	case ref.Title != "":
		return ref.Title
	default:
		return ref.URL
	}
}

// pdfHeadingSizes 各级标题的字号，更深的层级使用最后一个
var pdfHeadingSizes = []float64{16, 14, 12}

// renderPDF 用内置字体排版文章，输出前用pdfcpu校验
func renderPDF(topic string, doc *article.Document, refs []models.Reference) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(topic, true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(0, 10, tr(topic), "", "L", false)
	pdf.Ln(4)

	doc.Walk(func(path []string, sec *article.Section) {
		size := pdfHeadingSizes[min(len(path), len(pdfHeadingSizes))-1]
		pdf.SetFont("Helvetica", "B", size)
		pdf.MultiCell(0, size*0.5, tr(sec.Title), "", "L", false)
		pdf.Ln(2)

		pdf.SetFont("Helvetica", "", 11)
		for _, para := range strings.Split(sec.Content, "\n\n") {
			if para = strings.TrimSpace(para); para == "" {
				continue
			}
			pdf.MultiCell(0, 5.5, tr(plainText(para)), "", "L", false)
			pdf.Ln(2)
		}
	})

	if len(refs) > 0 {
		pdf.SetFont("Helvetica", "B", pdfHeadingSizes[0])
		pdf.MultiCell(0, 8, "References", "", "L", false)
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "", 10)
		for _, ref := range refs {
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("[%d] %s", ref.Index, referenceLine(ref))), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}

	if err := api.Validate(bytes.NewReader(buf.Bytes()), nil); err != nil {
		return nil, fmt.Errorf("rendered pdf failed validation: %w", err)
	}

	return buf.Bytes(), nil
}

var (
	emphasis   = regexp.MustCompile(`\*\*([^*]+)\*\*|\*([^*]+)\*`)
	inlineLink = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	nonSlug    = regexp.MustCompile(`[^a-z0-9]+`)
)

// plainText 去掉PDF中无法呈现的行内Markdown标记
func plainText(text string) string {
	text = inlineLink.ReplaceAllString(text, "$1")
	return emphasis.ReplaceAllString(text, "$1$2")
}

// slugify 把主题转换为文件名
func slugify(topic string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(topic), "-"), "-")
	if slug == "" {
		return "article"
	}
	return slug
}
