package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyerfyer/storm-article/api/middleware"
	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/fyerfyer/storm-article/internal/repository"
	"github.com/sirupsen/logrus"
)

// ArticleStatusManager 文章状态管理器
// 负责生成过程中的状态流转，内容变更由ArticleService在同一次写入中完成
type ArticleStatusManager struct {
	repo   repository.ArticleRepository
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewArticleStatusManager 创建文章状态管理器
func NewArticleStatusManager(repo repository.ArticleRepository, logger *logrus.Logger) *ArticleStatusManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	return &ArticleStatusManager{
		repo:   repo,
		logger: logger,
	}
}

// validTransitions 允许的状态转换
var validTransitions = map[models.ArticleStatus][]models.ArticleStatus{
	models.ArticleStatusEmpty: {
		models.ArticleStatusDrafting,
		models.ArticleStatusDrafted,
		models.ArticleStatusFailed,
	},
	models.ArticleStatusDrafting: {
		models.ArticleStatusDrafting, // 多个章节可以并行生成
		models.ArticleStatusDrafted,
		models.ArticleStatusPolished,
		models.ArticleStatusEmpty,
		models.ArticleStatusFailed,
	},
	models.ArticleStatusDrafted: {
		models.ArticleStatusDrafting,
		models.ArticleStatusDrafted,
		models.ArticleStatusPolished,
		models.ArticleStatusEmpty,
		models.ArticleStatusFailed,
	},
	models.ArticleStatusPolished: {
		models.ArticleStatusDrafting,
		models.ArticleStatusDrafted,
		models.ArticleStatusPolished,
		models.ArticleStatusEmpty,
		models.ArticleStatusFailed,
	},
	// 失败后允许重试
	models.ArticleStatusFailed: {
		models.ArticleStatusFailed,
		models.ArticleStatusDrafting,
		models.ArticleStatusDrafted,
		models.ArticleStatusPolished,
		models.ArticleStatusEmpty,
	},
}

// ValidateStateTransition 验证状态转换的有效性
func (m *ArticleStatusManager) ValidateStateTransition(from, to models.ArticleStatus) error {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", models.ErrInvalidArticleStatus, from, to)
}

// MarkAsDrafting 开始一次生成前把文章标记为生成中
func (m *ArticleStatusManager) MarkAsDrafting(ctx context.Context, articleID string) error {
	return m.transition(articleID, models.ArticleStatusDrafting, "")
}

// MarkAsFailed 把文章标记为失败并记录错误信息
func (m *ArticleStatusManager) MarkAsFailed(ctx context.Context, articleID string, errorMsg string) error {
	return m.transition(articleID, models.ArticleStatusFailed, errorMsg)
}

// GetStatus 获取文章当前状态
func (m *ArticleStatusManager) GetStatus(ctx context.Context, articleID string) (models.ArticleStatus, error) {
	a, err := m.repo.GetByID(articleID)
	if err != nil {
		return "", fmt.Errorf("failed to get article status: %w", err)
	}
	return a.Status, nil
}

func (m *ArticleStatusManager) transition(articleID string, to models.ArticleStatus, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.repo.GetByID(articleID)
	if err != nil {
		return fmt.Errorf("failed to get article: %w", err)
	}

	if err := m.ValidateStateTransition(a.Status, to); err != nil {
		return err
	}

	entry := m.logger.WithFields(logrus.Fields{
		middleware.FieldArticleID: articleID,
		"from":                    a.Status,
		"to":                      to,
	})
	if errorMsg != "" {
		entry.WithField(middleware.FieldError, errorMsg).Warn("Article status changed")
	} else {
		entry.Info("Article status changed")
	}

	return m.repo.UpdateStatus(articleID, to, errorMsg)
}
