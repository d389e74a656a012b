package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyerfyer/storm-article/api/middleware"
	"github.com/fyerfyer/storm-article/internal/article"
	"github.com/fyerfyer/storm-article/internal/llm"
	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/fyerfyer/storm-article/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// EnqueueDraft 提交异步章节生成任务
func (s *ArticleService) EnqueueDraft(ctx context.Context, id string, payload taskqueue.DraftPayload) (string, error) {
	return s.enqueue(ctx, id, taskqueue.TaskArticleDraft, payload)
}

// EnqueuePolish 提交异步润色任务
func (s *ArticleService) EnqueuePolish(ctx context.Context, id string, payload taskqueue.PolishPayload) (string, error) {
	return s.enqueue(ctx, id, taskqueue.TaskArticlePolish, payload)
}

// EnqueueLead 提交异步导语任务
func (s *ArticleService) EnqueueLead(ctx context.Context, id string, payload taskqueue.LeadPayload) (string, error) {
	return s.enqueue(ctx, id, taskqueue.TaskArticleLead, payload)
}

// GetTask 获取任务状态
func (s *ArticleService) GetTask(ctx context.Context, taskID string) (*taskqueue.Task, error) {
	if s.taskQueue == nil {
		return nil, ErrQueueUnavailable
	}
	return s.taskQueue.GetTask(ctx, taskID)
}

// ListTasks 获取文章的全部任务
func (s *ArticleService) ListTasks(ctx context.Context, id string) ([]*taskqueue.Task, error) {
	if s.taskQueue == nil {
		return nil, ErrQueueUnavailable
	}
	return s.taskQueue.GetTasksByArticle(ctx, id)
}

func (s *ArticleService) enqueue(ctx context.Context, id string, taskType taskqueue.TaskType, payload interface{}) (string, error) {
	if s.taskQueue == nil {
		return "", ErrQueueUnavailable
	}

	var taskID string
	err := s.withLock(id, func() error {
		a, err := s.repo.GetByID(id)
		if err != nil {
			return err
		}

		taskID, err = s.taskQueue.Enqueue(ctx, taskType, id, payload)
		if err != nil {
			return fmt.Errorf("failed to enqueue %s task: %w", taskType, err)
		}

		a.CurrentTaskID = taskID
		return s.repo.Update(a)
	})
	if err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		middleware.FieldArticleID: id,
		"task_id":                 taskID,
		"task_type":               taskType,
	}).Info("Article task enqueued")

	return taskID, nil
}

// ArticleTaskHandler 在工作者中执行文章生成任务
type ArticleTaskHandler struct {
	service *ArticleService
}

// NewArticleTaskHandler 创建文章任务处理器
func NewArticleTaskHandler(service *ArticleService) *ArticleTaskHandler {
	return &ArticleTaskHandler{service: service}
}

// GetTaskTypes 返回支持的任务类型
func (h *ArticleTaskHandler) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{
		taskqueue.TaskArticleDraft,
		taskqueue.TaskArticlePolish,
		taskqueue.TaskArticleLead,
	}
}

// ProcessTask 处理任务，返回处理后的文章概要
// 文章不存在或生成结果不可用时不再重试
func (h *ArticleTaskHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) (interface{}, error) {
	var (
		a   *models.Article
		err error
	)

	switch task.Type {
	case taskqueue.TaskArticleDraft:
		var payload taskqueue.DraftPayload
		if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
			return nil, taskqueue.Permanent(err)
		}
		a, err = h.service.DraftSection(ctx, task.ArticleID, payload.Title, payload.Parent, payload.Context)

	case taskqueue.TaskArticlePolish:
		var payload taskqueue.PolishPayload
		if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
			return nil, taskqueue.Permanent(err)
		}
		a, err = h.service.Polish(ctx, task.ArticleID, payload.RemoveDuplicate)

	case taskqueue.TaskArticleLead:
		var payload taskqueue.LeadPayload
		if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
			return nil, taskqueue.Permanent(err)
		}
		a, err = h.service.WriteLead(ctx, task.ArticleID, payload.MaxWords)

	default:
		return nil, taskqueue.Permanent(fmt.Errorf("unsupported task type: %s", task.Type))
	}

	if err != nil {
		if isPermanent(err) {
			return nil, taskqueue.Permanent(err)
		}
		return nil, err
	}

	return &taskqueue.ArticleResult{
		ArticleID:     a.ID,
		Version:       a.Version,
		SectionCount:  a.SectionCount,
		CitationCount: a.CitationCount,
	}, nil
}

// isPermanent 重试也不会成功的错误
func isPermanent(err error) bool {
	return errors.Is(err, models.ErrArticleNotFound) ||
		errors.Is(err, models.ErrInvalidArticleStatus) ||
		errors.Is(err, ErrNoUsableContent) ||
		errors.Is(err, ErrLLMUnavailable) ||
		article.IsPathError(err) ||
		!llm.IsRetryable(err)
}
