package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/fyerfyer/storm-article/api/middleware"
	"github.com/fyerfyer/storm-article/internal/article"
	"github.com/fyerfyer/storm-article/internal/llm"
	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/sirupsen/logrus"
)

// generate 调用大模型生成文本，可重试的错误按指数退避重试
func (s *ArticleService) generate(ctx context.Context, prompt string) (string, error) {
	if s.llm == nil {
		return "", ErrLLMUnavailable
	}

	return retry.DoWithData(
		func() (string, error) {
			resp, err := s.llm.Generate(ctx, prompt)
			if err != nil {
				if !llm.IsRetryable(err) {
					return "", retry.Unrecoverable(err)
				}
				return "", err
			}
			if resp.Truncated() {
				s.logger.WithField("model", s.llm.Name()).Debug("Generation hit the token limit, trailing sentence will be trimmed")
			}
			return resp.Text, nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.WithFields(logrus.Fields{
				"attempt":             n + 1,
				"model":               s.llm.Name(),
				middleware.FieldError: err.Error(),
			}).Warn("Generation failed, retrying")
		}),
	)
}

// DraftSection 生成一个章节并写入parent路径下
// 参考来源按编号提供给模型，生成结果中的引用编号与来源对应
func (s *ArticleService) DraftSection(ctx context.Context, id, title string, parent []string, notes string) (*models.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: section title is required", ErrNoUsableContent)
	}

	a, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	refs, err := a.GetReferences()
	if err != nil {
		return nil, fmt.Errorf("failed to decode references: %w", err)
	}

	if err := s.withLock(id, func() error { return s.statusManager.MarkAsDrafting(ctx, id) }); err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(refs))
	for _, ref := range refs {
		sources = append(sources, strings.TrimSpace(ref.Title+" "+ref.Snippet))
	}

	existing := article.LimitWords(a.Content, s.maxContextWords)
	if notes = strings.TrimSpace(notes); notes != "" {
		existing = strings.TrimSpace(existing + "\n\nNotes:\n" + notes)
	}

	text, err := s.generate(ctx, llm.DraftSectionPrompt(a.Topic, title, existing, sources))
	if err != nil {
		s.markFailed(ctx, id, err)
		return nil, err
	}

	fragments := sectionFragments(title, article.CleanUpSection(text))
	if len(fragments) == 0 {
		s.markFailed(ctx, id, ErrNoUsableContent)
		return nil, ErrNoUsableContent
	}

	updated, err := s.mutate(ctx, id, mutation{
		stage: models.StageDraft,
		apply: func(_ *models.Article, doc *article.Document) error {
			for _, fragment := range fragments {
				if err := article.InsertSection(doc, parent, fragment, false); err != nil {
					return err
				}
			}
			return nil
		},
	})
	if err != nil {
		s.markFailed(ctx, id, err)
		return nil, err
	}
	return updated, nil
}

// Polish 润色全文并重写导语
// removeDuplicate为true时先让模型删除重复信息，润色结果中的章节集合是权威的
func (s *ArticleService) Polish(ctx context.Context, id string, removeDuplicate bool) (*models.Article, error) {
	a, doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.IsEmpty() {
		return nil, fmt.Errorf("%w: article has no sections to polish", models.ErrInvalidArticleStatus)
	}

	var update *article.Sections
	if removeDuplicate {
		text, err := s.generate(ctx, llm.PolishPrompt(article.Serialize(withoutLead(doc))))
		if err != nil {
			s.markFailed(ctx, id, err)
			return nil, err
		}

		update = article.ParseSections(trimTail(text))
		if update.Len() == 0 {
			s.markFailed(ctx, id, ErrNoUsableContent)
			return nil, ErrNoUsableContent
		}
	}

	draft := doc.Clone()
	if update != nil {
		if err := mergeKeepingLead(draft, update, article.MergeOptions{TrimChildren: true}); err != nil {
			return nil, err
		}
	}

	lead, err := s.lead(ctx, a.Topic, draft, s.leadMaxWords)
	if err != nil {
		s.markFailed(ctx, id, err)
		return nil, err
	}

	return s.mutate(ctx, id, mutation{
		stage: models.StagePolish,
		prune: true,
		apply: func(_ *models.Article, doc *article.Document) error {
			if update != nil {
				if err := mergeKeepingLead(doc, update, article.MergeOptions{TrimChildren: true}); err != nil {
					return err
				}
			}
			return article.InsertLead(doc, lead)
		},
	})
}

// WriteLead 只重写导语，maxWords为0时使用默认上限
func (s *ArticleService) WriteLead(ctx context.Context, id string, maxWords int) (*models.Article, error) {
	a, doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.IsEmpty() {
		return nil, fmt.Errorf("%w: article has no sections to summarize", models.ErrInvalidArticleStatus)
	}
	if maxWords <= 0 {
		maxWords = s.leadMaxWords
	}

	lead, err := s.lead(ctx, a.Topic, doc, maxWords)
	if err != nil {
		s.markFailed(ctx, id, err)
		return nil, err
	}

	return s.mutate(ctx, id, mutation{
		stage: models.StageLead,
		apply: func(_ *models.Article, doc *article.Document) error {
			return article.InsertLead(doc, lead)
		},
	})
}

// RefineOutline 让模型改进现有大纲，再按新大纲调整文章结构
func (s *ArticleService) RefineOutline(ctx context.Context, id string) (*models.Article, error) {
	a, doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	outline, err := s.generate(ctx, llm.OutlinePrompt(a.Topic, article.Outline(withoutLead(doc))))
	if err != nil {
		return nil, err
	}

	return s.ApplyOutline(ctx, id, outline)
}

// lead 生成导语文本：去掉标题行，限制单词数并删除末尾未完成的句子
func (s *ArticleService) lead(ctx context.Context, topic string, doc *article.Document, maxWords int) (string, error) {
	text, err := s.generate(ctx, llm.LeadPrompt(topic, article.Serialize(withoutLead(doc))))
	if err != nil {
		return "", err
	}

	var paragraphs []string
	for _, p := range strings.Split(article.CleanUpSection(text), "\n\n") {
		if strings.HasPrefix(strings.TrimSpace(p), "#") {
			continue
		}
		paragraphs = append(paragraphs, p)
	}

	lead := article.TrimIncomplete(article.LimitWords(strings.Join(paragraphs, "\n\n"), maxWords))
	if lead == "" {
		return "", ErrNoUsableContent
	}
	return lead, nil
}

// withoutLead 返回去掉导语章节的副本
func withoutLead(doc *article.Document) *article.Document {
	clone := doc.Clone()
	_ = article.RemoveSection(clone, article.LeadTitle)
	return clone
}

// trimTail 生成结果可能被长度限制截断，删除最后一行正文中未完成的句子
func trimTail(text string) string {
	lines := strings.Split(strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n")), "\n")
	last := len(lines) - 1
	if strings.HasPrefix(strings.TrimSpace(lines[last]), "#") {
		return strings.Join(lines, "\n")
	}
	lines[last] = article.TrimIncomplete(lines[last])
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// withLock 在文章锁内执行fn
func (s *ArticleService) withLock(id string, fn func() error) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return fn()
}

// markFailed 记录生成失败，文章不存在时忽略
func (s *ArticleService) markFailed(ctx context.Context, id string, cause error) {
	if errors.Is(cause, models.ErrArticleNotFound) || errors.Is(cause, context.Canceled) {
		return
	}
	err := s.withLock(id, func() error {
		return s.statusManager.MarkAsFailed(ctx, id, cause.Error())
	})
	if err != nil {
		s.logger.WithError(err).WithField(middleware.FieldArticleID, id).Warn("Failed to mark article as failed")
	}
}
