package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/storm-article/api/middleware"
	"github.com/fyerfyer/storm-article/internal/database"
	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/fyerfyer/storm-article/pkg/taskqueue"
	"gorm.io/gorm"
)

// articleRepository 文章仓储实现
type articleRepository struct {
	db        *gorm.DB        // 数据库连接
	taskQueue taskqueue.Queue // 任务队列，删除文章时清理相关任务
	ctx       context.Context
}

// NewArticleRepository 使用全局数据库连接创建文章仓储
func NewArticleRepository() ArticleRepository {
	return &articleRepository{
		db:  database.MustDB(),
		ctx: context.Background(),
	}
}

// NewArticleRepositoryWithDB 使用指定的数据库连接创建文章仓储
func NewArticleRepositoryWithDB(db *gorm.DB) ArticleRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &articleRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// NewArticleRepositoryWithQueue 使用指定的数据库连接和任务队列创建文章仓储
func NewArticleRepositoryWithQueue(db *gorm.DB, queue taskqueue.Queue) ArticleRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &articleRepository{
		db:        db,
		taskQueue: queue,
		ctx:       context.Background(),
	}
}

// Create 创建文章记录
func (r *articleRepository) Create(article *models.Article) error {
	if article.ID == "" {
		return errors.New("article ID cannot be empty")
	}
	return r.db.Create(article).Error
}

// Update 更新文章记录
func (r *articleRepository) Update(article *models.Article) error {
	if article.ID == "" {
		return errors.New("article ID cannot be empty")
	}
	return r.db.Save(article).Error
}

// GetByID 根据ID获取文章
func (r *articleRepository) GetByID(id string) (*models.Article, error) {
	var article models.Article
	err := r.db.Where("id = ?", id).First(&article).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrArticleNotFound, id)
		}
		return nil, err
	}
	return &article, nil
}

// List 列出文章列表，按更新时间倒序
// 支持的筛选条件：status（精确匹配）、topic（模糊匹配）
func (r *articleRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Article, int64, error) {
	var articles []*models.Article
	var total int64

	query := r.db.Model(&models.Article{})

	if filters != nil {
		switch s := filters["status"].(type) {
		case models.ArticleStatus:
			if s != "" {
				query = query.Where("status = ?", string(s))
			}
		case string:
			if s != "" {
				query = query.Where("status = ?", s)
			}
		}

		if topic, ok := filters["topic"].(string); ok && topic != "" {
			query = query.Where("topic LIKE ?", "%"+topic+"%")
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		return nil, 0, err
	}

	return articles, total, nil
}

// Delete 删除文章、修订记录以及队列中的相关任务
func (r *articleRepository) Delete(id string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("article_id = ?", id).Delete(&models.ArticleRevision{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&models.Article{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", models.ErrArticleNotFound, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if r.taskQueue != nil {
		tasks, err := r.taskQueue.GetTasksByArticle(r.ctx, id)
		if err != nil {
			middleware.GetLogger().WithError(err).
				WithField(middleware.FieldArticleID, id).
				Warn("Failed to list article tasks for cleanup")
			return nil
		}
		for _, task := range tasks {
			// 任务可能已经过期被删除
			_ = r.taskQueue.DeleteTask(r.ctx, task.ID)
		}
	}

	return nil
}

// UpdateStatus 更新文章状态
func (r *articleRepository) UpdateStatus(id string, status models.ArticleStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"error":      errorMsg,
		"updated_at": time.Now(),
	}

	result := r.db.Model(&models.Article{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrArticleNotFound, id)
	}
	return nil
}

// SaveRevision 保存修订记录
func (r *articleRepository) SaveRevision(revision *models.ArticleRevision) error {
	if revision.ArticleID == "" {
		return errors.New("revision article ID cannot be empty")
	}
	return r.db.Create(revision).Error
}

// ListRevisions 按版本升序获取文章的修订记录
func (r *articleRepository) ListRevisions(articleID string) ([]*models.ArticleRevision, error) {
	var revisions []*models.ArticleRevision
	err := r.db.Where("article_id = ?", articleID).
		Order("version ASC").
		Find(&revisions).Error
	return revisions, err
}

// GetRevision 获取指定版本的修订记录
func (r *articleRepository) GetRevision(articleID string, version int) (*models.ArticleRevision, error) {
	var revision models.ArticleRevision
	err := r.db.Where("article_id = ? AND version = ?", articleID, version).
		First(&revision).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s@%d", models.ErrRevisionNotFound, articleID, version)
		}
		return nil, err
	}
	return &revision, nil
}
