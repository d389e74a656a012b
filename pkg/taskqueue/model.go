package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型，同时作为asynq的任务名
type TaskType string

const (
	TaskArticleDraft  TaskType = "article:draft"  // 生成单个章节
	TaskArticlePolish TaskType = "article:polish" // 全文润色并重写导语
	TaskArticleLead   TaskType = "article:lead"   // 只重写导语
)

// TaskStatus 任务状态
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending" // 排队中，或失败后等待重试
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Task 任务记录
type Task struct {
	ID          string          `json:"id"`
	Type        TaskType        `json:"type"`
	ArticleID   string          `json:"article_id"`
	Status      TaskStatus      `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"` // 最近一次失败的原因
	Attempts    int             `json:"attempts"`
	MaxRetries  int             `json:"max_retries"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// IsFinished 任务是否已经结束，结束的任务不会再被执行
func (t *Task) IsFinished() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// DraftPayload 章节生成任务载荷
type DraftPayload struct {
	Title   string   `json:"title"`
	Parent  []string `json:"parent,omitempty"`  // 为空时作为顶层章节
	Context string   `json:"context,omitempty"` // 额外的写作素材
}

// PolishPayload 润色任务载荷
type PolishPayload struct {
	RemoveDuplicate bool `json:"remove_duplicate"`
}

// LeadPayload 导语任务载荷
type LeadPayload struct {
	MaxWords int `json:"max_words,omitempty"` // 0表示使用服务默认值
}

// ArticleResult 文章任务完成后的摘要
type ArticleResult struct {
	ArticleID     string `json:"article_id"`
	Version       int    `json:"version"`
	SectionCount  int    `json:"section_count"`
	CitationCount int    `json:"citation_count"`
}
