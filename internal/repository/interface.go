package repository

import "github.com/fyerfyer/storm-article/internal/models"

// ArticleRepository 文章仓储接口
// 负责文章及其修订记录的存储和检索
type ArticleRepository interface {
	// Create 创建文章记录
	Create(article *models.Article) error

	// Update 更新文章记录
	Update(article *models.Article) error

	// GetByID 根据ID获取文章
	GetByID(id string) (*models.Article, error)

	// List 列出文章列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Article, int64, error)

	// Delete 删除文章及其修订记录
	Delete(id string) error

	// UpdateStatus 更新文章状态
	UpdateStatus(id string, status models.ArticleStatus, errorMsg string) error

	// SaveRevision 保存修订记录
	SaveRevision(revision *models.ArticleRevision) error

	// ListRevisions 按版本升序获取文章的修订记录
	ListRevisions(articleID string) ([]*models.ArticleRevision, error)

	// GetRevision 获取指定版本的修订记录
	GetRevision(articleID string, version int) (*models.ArticleRevision, error)
}
