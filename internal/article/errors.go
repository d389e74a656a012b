package article

import (
	"errors"
	"fmt"
)

// ArticleError 文章处理错误类型
type ArticleError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e ArticleError) Error() string {
	return fmt.Sprintf("article error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeConfiguration = 2001 // 调用方前置条件不满足
	ErrCodeInvalidPath   = 2002 // 章节路径无效
)

// NewArticleError 创建新的文章处理错误
func NewArticleError(code int, message string) ArticleError {
	return ArticleError{
		Code:    code,
		Message: message,
	}
}

var (
	// ErrNilDocument 合并时目标文档为空
	ErrNilDocument = NewArticleError(ErrCodeConfiguration, "existing document is nil")

	// ErrEmptyPath 章节路径为空
	ErrEmptyPath = NewArticleError(ErrCodeInvalidPath, "section path cannot be empty")
)

// IsConfigurationError 判断是否为配置类错误
func IsConfigurationError(err error) bool {
	var e ArticleError
	if errors.As(err, &e) {
		return e.Code == ErrCodeConfiguration
	}
	return false
}

// IsPathError 判断是否为章节路径错误
func IsPathError(err error) bool {
	var e ArticleError
	if errors.As(err, &e) {
		return e.Code == ErrCodeInvalidPath
	}
	return false
}
