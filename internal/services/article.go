package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fyerfyer/storm-article/api/middleware"
	"github.com/fyerfyer/storm-article/internal/article"
	"github.com/fyerfyer/storm-article/internal/cache"
	"github.com/fyerfyer/storm-article/internal/llm"
	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/fyerfyer/storm-article/internal/repository"
	"github.com/fyerfyer/storm-article/pkg/storage"
	"github.com/fyerfyer/storm-article/pkg/taskqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// ArticleService 文章服务
// 负责协调文章树的解析合并、生成调用、持久化、缓存和导出
type ArticleService struct {
	repo             repository.ArticleRepository // 文章仓储
	llm              llm.Client                   // 大模型客户端
	cache            cache.Cache                  // 渲染结果缓存
	storage          storage.Storage              // 导出文件存储
	taskQueue        taskqueue.Queue              // 任务队列
	statusManager    *ArticleStatusManager        // 状态管理器
	locks            *keyedMutex                  // 按文章加锁
	attempts         uint                         // 生成调用的最大尝试次数
	retryDelay       time.Duration                // 生成重试的初始间隔
	maxContextWords  int                          // 提示词中文章上下文的最大单词数
	leadMaxWords     int                          // 导语最大单词数
	normalizeWorkers int                          // 批量规范化的并发数
	cacheTTL         time.Duration                // 渲染结果缓存时间
	logger           *logrus.Logger               // 日志记录器
}

// ArticleOption 文章服务配置选项
type ArticleOption func(*ArticleService)

// NewArticleService 创建文章服务
func NewArticleService(repo repository.ArticleRepository, client llm.Client, opts ...ArticleOption) *ArticleService {
	srv := &ArticleService{
		repo:             repo,
		llm:              client,
		locks:            newKeyedMutex(),
		attempts:         3,
		retryDelay:       500 * time.Millisecond,
		maxContextWords:  3000,
		leadMaxWords:     300,
		normalizeWorkers: 4,
		cacheTTL:         time.Hour,
		logger:           middleware.GetLogger(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	if srv.repo == nil {
		srv.repo = repository.NewArticleRepository()
	}
	srv.statusManager = NewArticleStatusManager(srv.repo, srv.logger)

	return srv
}

// WithCache 设置渲染结果缓存
func WithCache(c cache.Cache) ArticleOption {
	return func(s *ArticleService) {
		s.cache = c
	}
}

// WithStorage 设置导出存储
func WithStorage(st storage.Storage) ArticleOption {
	return func(s *ArticleService) {
		s.storage = st
	}
}

// WithTaskQueue 设置任务队列
func WithTaskQueue(queue taskqueue.Queue) ArticleOption {
	return func(s *ArticleService) {
		s.taskQueue = queue
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) ArticleOption {
	return func(s *ArticleService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGenerateAttempts 设置生成调用的最大尝试次数
func WithGenerateAttempts(n int) ArticleOption {
	return func(s *ArticleService) {
		if n > 0 {
			s.attempts = uint(n)
		}
	}
}

// WithRetryDelay 设置生成重试的初始间隔
func WithRetryDelay(d time.Duration) ArticleOption {
	return func(s *ArticleService) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

// WithMaxContextWords 设置提示词中文章上下文的最大单词数
func WithMaxContextWords(n int) ArticleOption {
	return func(s *ArticleService) {
		if n > 0 {
			s.maxContextWords = n
		}
	}
}

// WithLeadMaxWords 设置导语最大单词数
func WithLeadMaxWords(n int) ArticleOption {
	return func(s *ArticleService) {
		if n > 0 {
			s.leadMaxWords = n
		}
	}
}

// WithNormalizeWorkers 设置批量规范化的并发数
func WithNormalizeWorkers(n int) ArticleOption {
	return func(s *ArticleService) {
		if n > 0 {
			s.normalizeWorkers = n
		}
	}
}

// WithCacheTTL 设置渲染结果缓存时间
func WithCacheTTL(ttl time.Duration) ArticleOption {
	return func(s *ArticleService) {
		s.cacheTTL = ttl
	}
}

// Create 创建一篇空文章
func (s *ArticleService) Create(ctx context.Context, topic string) (*models.Article, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	a := &models.Article{
		ID:     uuid.New().String(),
		Topic:  topic,
		Status: models.ArticleStatusEmpty,
		Tree:   datatypes.JSON("[]"),
	}
	if err := a.SetReferences(nil); err != nil {
		return nil, err
	}

	if err := s.repo.Create(a); err != nil {
		return nil, fmt.Errorf("failed to create article: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		middleware.FieldArticleID: a.ID,
		"topic":                   topic,
	}).Info("Article created")

	return a, nil
}

// Get 获取文章记录
func (s *ArticleService) Get(ctx context.Context, id string) (*models.Article, error) {
	return s.repo.GetByID(id)
}

// GetDocument 获取文章记录及其章节树
func (s *ArticleService) GetDocument(ctx context.Context, id string) (*models.Article, *article.Document, error) {
	a, err := s.repo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	doc, err := DecodeDocument(a)
	if err != nil {
		return nil, nil, err
	}
	return a, doc, nil
}

// List 分页列出文章
func (s *ArticleService) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Article, int64, error) {
	return s.repo.List(offset, limit, filters)
}

// ListRevisions 列出文章的修订历史
func (s *ArticleService) ListRevisions(ctx context.Context, id string) ([]*models.ArticleRevision, error) {
	if _, err := s.repo.GetByID(id); err != nil {
		return nil, err
	}
	return s.repo.ListRevisions(id)
}

// GetRevision 获取指定版本的修订内容
func (s *ArticleService) GetRevision(ctx context.Context, id string, version int) (*models.ArticleRevision, error) {
	return s.repo.GetRevision(id, version)
}

// Delete 删除文章及其缓存
func (s *ArticleService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.removeExports(ctx, id)

	s.logger.WithField(middleware.FieldArticleID, id).Info("Article deleted")
	return nil
}

// mutation 一次读改写的参数
type mutation struct {
	stage models.RevisionStage
	// prune 为true时删除空章节，大纲骨架阶段需要保留空章节
	prune bool
	apply func(a *models.Article, doc *article.Document) error
}

// mutate 在文章锁内加载章节树、应用修改、规范化引用并持久化
// 每次成功的修改都会递增版本号并保存一条修订记录
func (s *ArticleService) mutate(ctx context.Context, id string, m mutation) (*models.Article, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	a, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	doc, err := DecodeDocument(a)
	if err != nil {
		return nil, err
	}

	if err := m.apply(a, doc); err != nil {
		return nil, err
	}

	refs, err := a.GetReferences()
	if err != nil {
		return nil, fmt.Errorf("failed to decode references: %w", err)
	}
	if len(refs) > 0 {
		doc.Walk(func(_ []string, sec *article.Section) {
			sec.Content = article.DropOutOfRangeCitations(sec.Content, len(refs))
		})
	}

	var mapping map[int]int
	if m.prune {
		mapping = article.Canonicalize(doc)
	} else {
		mapping = article.NormalizeCitationsWithMap(doc)
	}

	if err := a.SetReferences(reorderReferences(refs, mapping)); err != nil {
		return nil, err
	}
	if err := encodeDocument(a, doc); err != nil {
		return nil, err
	}

	a.Status = nextStatus(a.Status, m.stage, doc)
	a.Error = ""
	a.Version++
	a.LastStage = m.stage

	if err := s.repo.Update(a); err != nil {
		return nil, fmt.Errorf("failed to save article: %w", err)
	}

	revision := &models.ArticleRevision{
		ArticleID: a.ID,
		Version:   a.Version,
		Stage:     m.stage,
		Content:   a.Content,
	}
	if err := s.repo.SaveRevision(revision); err != nil {
		s.logger.WithError(err).WithField(middleware.FieldArticleID, a.ID).Warn("Failed to save revision")
	}

	s.invalidate(ctx, a.ID)

	s.logger.WithFields(logrus.Fields{
		middleware.FieldArticleID: a.ID,
		"stage":                   m.stage,
		"version":                 a.Version,
		"sections":                a.SectionCount,
		"citations":               a.CitationCount,
	}).Info("Article updated")

	return a, nil
}

// nextStatus 根据修改阶段和结果计算文章状态
func nextStatus(current models.ArticleStatus, stage models.RevisionStage, doc *article.Document) models.ArticleStatus {
	if doc.IsEmpty() {
		return models.ArticleStatusEmpty
	}
	if stage == models.StagePolish {
		return models.ArticleStatusPolished
	}
	// 导语和引用调整不改变润色状态
	if current == models.ArticleStatusPolished && (stage == models.StageLead || stage == models.StageNormalize) {
		return models.ArticleStatusPolished
	}
	return models.ArticleStatusDrafted
}

// reorderReferences 按引用编号映射重排参考来源
// 被引用的来源按新编号排在前面，未被引用的保持原顺序接在后面
func reorderReferences(refs []models.Reference, mapping map[int]int) []models.Reference {
	if len(refs) == 0 {
		return refs
	}

	cited := make([]models.Reference, len(mapping))
	var uncited []models.Reference
	for _, ref := range refs {
		if n, ok := mapping[ref.Index]; ok && n <= len(cited) {
			ref.Index = n
			cited[n-1] = ref
			continue
		}
		uncited = append(uncited, ref)
	}

	out := make([]models.Reference, 0, len(refs))
	for _, ref := range cited {
		if ref.Index != 0 {
			out = append(out, ref)
		}
	}
	for _, ref := range uncited {
		ref.Index = len(out) + 1
		out = append(out, ref)
	}
	return out
}

// DecodeDocument 从文章记录中解析章节树，记录为空时返回空文档
func DecodeDocument(a *models.Article) (*article.Document, error) {
	doc := article.NewDocument()
	if len(a.Tree) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(a.Tree, doc); err != nil {
		return nil, fmt.Errorf("failed to decode article tree: %w", err)
	}
	return doc, nil
}

// encodeDocument 把章节树及其派生字段写回文章记录
func encodeDocument(a *models.Article, doc *article.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode article tree: %w", err)
	}
	a.Tree = datatypes.JSON(data)
	a.Content = article.Serialize(doc)
	a.SectionCount = doc.SectionCount()
	a.CitationCount = len(article.CitationIndices(doc))
	return nil
}

// invalidate 删除文章所有版本的渲染缓存
func (s *ArticleService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, cache.ArticlePrefix(id)); err != nil {
		s.logger.WithError(err).WithField(middleware.FieldArticleID, id).Warn("Failed to invalidate cache")
	}
}
