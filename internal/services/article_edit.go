package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fyerfyer/storm-article/internal/article"
	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/fyerfyer/storm-article/internal/source"
	"golang.org/x/sync/errgroup"
)

// ApplyText 把一段Markdown文本合并到文章中
// trim为true时文本中的章节集合是权威的，不在文本中的已有章节会被删除
func (s *ArticleService) ApplyText(ctx context.Context, id, text string, trim bool) (*models.Article, error) {
	update := article.ParseSections(text)
	if update.Len() == 0 {
		return nil, ErrNoUsableContent
	}

	return s.mutate(ctx, id, mutation{
		stage: models.StageEdit,
		apply: func(_ *models.Article, doc *article.Document) error {
			_, err := article.Merge(doc, update, trim)
			return err
		},
	})
}

// ApplyOutline 用大纲调整文章结构
// 大纲中的章节顺序和层级是权威的，已有正文保留，导语不受影响
func (s *ArticleService) ApplyOutline(ctx context.Context, id, outline string) (*models.Article, error) {
	a, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	update := article.ParseSections(article.CleanUpOutline(outline, a.Topic))
	if update.Len() == 0 {
		return nil, ErrNoUsableContent
	}

	return s.mutate(ctx, id, mutation{
		stage: models.StageOutline,
		apply: func(_ *models.Article, doc *article.Document) error {
			return mergeKeepingLead(doc, update, article.MergeOptions{
				TrimChildren:       true,
				KeepContentOnEmpty: true,
				FollowOrder:        true,
			})
		},
	})
}

// Import 从上传的文件导入内容
func (s *ArticleService) Import(ctx context.Context, id, filename string, r io.Reader, trim bool) (*models.Article, error) {
	parser, err := source.ParserFactory(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	text, err := parser.ParseReader(r, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	update := article.ParseSections(text)
	if update.Len() == 0 {
		return nil, ErrNoUsableContent
	}

	return s.mutate(ctx, id, mutation{
		stage: models.StageImport,
		apply: func(_ *models.Article, doc *article.Document) error {
			_, err := article.Merge(doc, update, trim)
			return err
		},
	})
}

// EditSection 在parent路径下写入一个或多个章节
// 文本没有标题时必须通过title指定章节标题
func (s *ArticleService) EditSection(ctx context.Context, id string, parent []string, title, text string, trim bool) (*models.Article, error) {
	fragments := sectionFragments(title, text)
	if len(fragments) == 0 {
		return nil, ErrNoUsableContent
	}

	return s.mutate(ctx, id, mutation{
		stage: models.StageEdit,
		apply: func(_ *models.Article, doc *article.Document) error {
			for _, fragment := range fragments {
				if err := article.InsertSection(doc, parent, fragment, trim); err != nil {
					return err
				}
			}
			return nil
		},
	})
}

// RemoveSection 删除指定路径的章节及其子树
func (s *ArticleService) RemoveSection(ctx context.Context, id string, path []string) (*models.Article, error) {
	return s.mutate(ctx, id, mutation{
		stage: models.StageEdit,
		apply: func(_ *models.Article, doc *article.Document) error {
			return article.RemoveSection(doc, path...)
		},
	})
}

// SetReferences 替换文章的参考来源
// 来源按位置编号，超出范围的引用标记会被删除
func (s *ArticleService) SetReferences(ctx context.Context, id string, refs []models.Reference) (*models.Article, error) {
	return s.mutate(ctx, id, mutation{
		stage: models.StageNormalize,
		apply: func(a *models.Article, _ *article.Document) error {
			for i := range refs {
				refs[i].Index = i + 1
			}
			return a.SetReferences(refs)
		},
	})
}

// Normalize 删除空章节并重新编号引用
func (s *ArticleService) Normalize(ctx context.Context, id string) (*models.Article, error) {
	return s.mutate(ctx, id, mutation{
		stage: models.StageNormalize,
		prune: true,
		apply: func(*models.Article, *article.Document) error { return nil },
	})
}

// NormalizeAll 并发规范化多篇文章，遇到第一个错误时返回
func (s *ArticleService) NormalizeAll(ctx context.Context, ids []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.normalizeWorkers)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := s.Normalize(ctx, id); err != nil {
				return fmt.Errorf("normalize article %s: %w", id, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// mergeKeepingLead 合并时保留导语章节
// 权威合并会删除更新片段中没有的顶层章节，导语需要在合并后放回第一个位置
func mergeKeepingLead(doc *article.Document, update *article.Sections, opts article.MergeOptions) error {
	var lead *article.Section
	if _, inUpdate := update.Get(article.LeadTitle); !inUpdate {
		if existing, ok := doc.Find(article.LeadTitle); ok {
			lead = existing.Clone()
		}
	}

	if _, err := article.MergeWith(doc, update, opts); err != nil {
		return err
	}

	if lead != nil {
		return article.InsertLead(doc, lead.Content)
	}
	return nil
}

// sectionFragments 把一段文本转换为待插入的章节
// 不以标题开头的文本包装为title章节，原有标题降一级作为其子章节；
// 以标题开头时，只有一个同名顶层章节则直接使用，否则都挂到title章节下
func sectionFragments(title, text string) []*article.Section {
	title = strings.TrimSpace(title)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if !startsWithHeading(text) {
		if title == "" {
			return nil
		}
		text = "# " + title + "\n\n" + demoteHeadings(text)
	}

	parsed := article.ParseSections(text)
	if title == "" || parsed.Len() == 0 {
		return parsed.Values()
	}

	if parsed.Len() == 1 {
		if only, ok := parsed.Get(title); ok {
			return []*article.Section{only}
		}
	}

	wrapper := article.NewSection(title, "")
	parsed.Each(func(childTitle string, child *article.Section) {
		wrapper.Children.Set(childTitle, child)
	})
	return []*article.Section{wrapper}
}

// startsWithHeading 第一个非空行是否为标题
func startsWithHeading(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return strings.HasPrefix(line, "#")
	}
	return false
}

// demoteHeadings 把所有标题降一级
func demoteHeadings(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "#") && !strings.Contains(trimmed, "|") {
			lines[i] = "#" + trimmed
		}
	}
	return strings.Join(lines, "\n")
}
