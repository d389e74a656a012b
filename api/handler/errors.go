package handler

import (
	"errors"
	"net/http"

	"github.com/fyerfyer/storm-article/api/middleware"
	"github.com/fyerfyer/storm-article/internal/article"
	"github.com/fyerfyer/storm-article/internal/llm"
	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/fyerfyer/storm-article/internal/services"
	"github.com/fyerfyer/storm-article/pkg/taskqueue"
	"github.com/gin-gonic/gin"
)

// handleError 把服务层错误转换为AppError，交给ErrorMiddleware输出
func handleError(c *gin.Context, err error) {
	middleware.HandleError(c, toAppError(err))
}

func toAppError(err error) error {
	var llmErr llm.LLMError
	switch {
	case errors.Is(err, models.ErrArticleNotFound):
		return middleware.NewNotFoundError("文章不存在")
	case errors.Is(err, taskqueue.ErrTaskNotFound):
		return middleware.NewNotFoundError("任务不存在")
	case errors.Is(err, models.ErrRevisionNotFound):
		return middleware.NewNotFoundError("修订版本不存在")
	case errors.Is(err, services.ErrExportNotFound):
		return middleware.NewNotFoundError("导出文件不存在", err.Error())
	case article.IsPathError(err):
		return middleware.NewNotFoundError("章节不存在", err.Error())
	case errors.Is(err, models.ErrInvalidArticleStatus):
		return middleware.NewConflictError("文章当前状态不允许此操作", err.Error())
	case errors.Is(err, services.ErrEmptyTopic):
		return middleware.NewValidationError("文章主题不能为空")
	case errors.Is(err, services.ErrUnsupportedFormat):
		return middleware.NewValidationError("不支持的文件格式", err.Error())
	case errors.Is(err, services.ErrNoUsableContent):
		return middleware.NewBusinessError("没有可用的内容", err.Error())
	case errors.Is(err, services.ErrLLMUnavailable):
		return middleware.NewUnavailableError("未配置大模型")
	case errors.Is(err, services.ErrQueueUnavailable):
		return middleware.NewUnavailableError("未启用任务队列")
	case errors.Is(err, services.ErrStorageUnavailable):
		return middleware.NewUnavailableError("未配置导出存储")
	case errors.As(err, &llmErr):
		return llmAppError(llmErr)
	default:
		return err
	}
}

// llmAppError 限流返回429，内容审核拒绝返回422，其余按上游故障返回502
func llmAppError(err llm.LLMError) middleware.AppError {
	appErr := middleware.AppError{
		Type:    middleware.ErrorTypeInternal,
		Message: "大模型调用失败",
		Details: err.Error(),
		Code:    http.StatusBadGateway,
	}
	switch err.Code {
	case llm.ErrCodeRateLimited:
		appErr.Type = middleware.ErrorTypeUnavailable
		appErr.Code = http.StatusTooManyRequests
	case llm.ErrCodeContentFilter:
		appErr.Type = middleware.ErrorTypeBusiness
		appErr.Message = "生成内容未通过审核"
		appErr.Code = http.StatusUnprocessableEntity
	}
	return appErr
}

// bindError 请求参数校验失败
func bindError(c *gin.Context, err error) {
	middleware.HandleError(c, middleware.NewValidationError("无效的请求参数", err.Error()))
}
