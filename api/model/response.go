package model

import (
	"encoding/json"
	"time"

	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/fyerfyer/storm-article/pkg/storage"
	"github.com/fyerfyer/storm-article/pkg/taskqueue"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// ArticleSummary 文章概要，用于列表
type ArticleSummary struct {
	ID            string    `json:"id"`                        // 文章ID
	Topic         string    `json:"topic"`                     // 文章主题
	Status        string    `json:"status"`                    // 文章状态
	Version       int       `json:"version"`                   // 当前版本
	SectionCount  int       `json:"section_count"`             // 章节总数
	CitationCount int       `json:"citation_count"`            // 引用编号数量
	LastStage     string    `json:"last_stage,omitempty"`      // 最近一次修改的阶段
	CurrentTaskID string    `json:"current_task_id,omitempty"` // 当前异步任务ID
	Error         string    `json:"error,omitempty"`           // 最近一次失败的原因
	CreatedAt     time.Time `json:"created_at"`                // 创建时间
	UpdatedAt     time.Time `json:"updated_at"`                // 更新时间
}

// ArticleResponse 文章详情
type ArticleResponse struct {
	ArticleSummary
	Content    string             `json:"content"`    // 序列化后的Markdown
	Outline    string             `json:"outline"`    // 标题大纲
	Tree       interface{}        `json:"tree"`       // 章节树
	References []models.Reference `json:"references"` // 参考来源
}

// ArticleListResponse 文章列表响应
type ArticleListResponse struct {
	Total    int64            `json:"total"`     // 总数量
	Page     int              `json:"page"`      // 当前页码
	PageSize int              `json:"page_size"` // 每页大小
	Articles []ArticleSummary `json:"articles"`  // 文章列表
}

// TaskAcceptedResponse 异步任务已提交
type TaskAcceptedResponse struct {
	ArticleID string `json:"article_id"` // 文章ID
	TaskID    string `json:"task_id"`    // 任务ID
	Status    string `json:"status"`     // 任务状态
}

// RevisionInfo 修订记录
type RevisionInfo struct {
	Version   int       `json:"version"`           // 版本号
	Stage     string    `json:"stage"`             // 产生修订的阶段
	Content   string    `json:"content,omitempty"` // 修订后的Markdown，列表中不返回
	CreatedAt time.Time `json:"created_at"`        // 创建时间
}

// ExportResponse 导出文件信息
type ExportResponse struct {
	Key       string    `json:"key"`       // 存储键
	FileName  string    `json:"filename"`  // 文件名，下载时使用
	Size      int64     `json:"size"`      // 文件大小
	MimeType  string    `json:"mime_type"` // MIME类型
	UpdatedAt time.Time `json:"updated_at"`
}

// NewExportResponse 从存储元数据构建导出信息
func NewExportResponse(info storage.FileInfo) ExportResponse {
	return ExportResponse{
		Key:       info.Key,
		FileName:  info.Name,
		Size:      info.Size,
		MimeType:  info.MimeType,
		UpdatedAt: info.ModTime,
	}
}

// NewArticleSummary 从文章记录构建概要
func NewArticleSummary(a *models.Article) ArticleSummary {
	return ArticleSummary{
		ID:            a.ID,
		Topic:         a.Topic,
		Status:        string(a.Status),
		Version:       a.Version,
		SectionCount:  a.SectionCount,
		CitationCount: a.CitationCount,
		LastStage:     string(a.LastStage),
		CurrentTaskID: a.CurrentTaskID,
		Error:         a.Error,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// TaskInfo 异步任务状态
type TaskInfo struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	ArticleID   string          `json:"article_id"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"` // 只在查询单个任务时返回
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewTaskInfo 从任务记录构建状态信息
func NewTaskInfo(task *taskqueue.Task, withResult bool) TaskInfo {
	info := TaskInfo{
		ID:          task.ID,
		Type:        string(task.Type),
		ArticleID:   task.ArticleID,
		Status:      string(task.Status),
		Attempts:    task.Attempts,
		Error:       task.Error,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		CompletedAt: task.CompletedAt,
	}
	if withResult {
		info.Result = task.Result
	}
	return info
}
