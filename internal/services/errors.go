package services

import "errors"

var (
	// ErrNoUsableContent 生成结果清理后没有任何完整句子
	ErrNoUsableContent = errors.New("no usable content in generated text")

	// ErrLLMUnavailable 没有配置大模型客户端
	ErrLLMUnavailable = errors.New("llm client not configured")

	// ErrStorageUnavailable 没有配置导出存储
	ErrStorageUnavailable = errors.New("export storage not configured")

	// ErrExportNotFound 导出文件不存在
	ErrExportNotFound = errors.New("export not found")

	// ErrQueueUnavailable 没有启用任务队列
	ErrQueueUnavailable = errors.New("task queue not enabled")

	// ErrUnsupportedFormat 不支持的导出格式
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrEmptyTopic 文章主题为空
	ErrEmptyTopic = errors.New("article topic cannot be empty")
)
