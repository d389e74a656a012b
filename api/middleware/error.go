package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/fyerfyer/storm-article/api/model"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation  = "VALIDATION_ERROR"  // 输入验证错误
	ErrorTypeNotFound    = "NOT_FOUND_ERROR"   // 资源不存在错误
	ErrorTypeConflict    = "CONFLICT_ERROR"    // 资源状态冲突
	ErrorTypeInternal    = "INTERNAL_ERROR"    // 内部服务器错误
	ErrorTypeBusiness    = "BUSINESS_ERROR"    // 业务逻辑错误
	ErrorTypeUnavailable = "UNAVAILABLE_ERROR" // 依赖的组件未启用
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // HTTP状态码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func newAppError(typ string, code int, message string, details []string) AppError {
	return AppError{
		Type:    typ,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    code,
	}
}

// NewValidationError 请求参数不合法
func NewValidationError(message string, details ...string) AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, details)
}

// NewNotFoundError 文章、章节、任务或导出文件不存在
func NewNotFoundError(message string, details ...string) AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, details)
}

// NewConflictError 文章状态不允许当前操作
func NewConflictError(message string, details ...string) AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message, details)
}

func NewInternalError(message string, details ...string) AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, details)
}

// NewBusinessError 请求合法但没有产生可用结果，例如模型输出清理后为空
func NewBusinessError(message string, details ...string) AppError {
	return newAppError(ErrorTypeBusiness, http.StatusUnprocessableEntity, message, details)
}

// NewUnavailableError 大模型、队列或存储未启用
func NewUnavailableError(message string, details ...string) AppError {
	return newAppError(ErrorTypeUnavailable, http.StatusServiceUnavailable, message, details)
}

// ErrorMiddleware 统一错误处理中间件
// 恢复panic，并把处理器通过 HandleError 记录的最后一个错误转换为统一响应
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(logrus.Fields{
					FieldError: err,
					"stack":    string(debug.Stack()),
					FieldPath:  c.Request.URL.Path,
				}).Error("Panic recovered in API request")

				errorResponse := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)
				if gin.Mode() == gin.DebugMode {
					errorResponse.Message = fmt.Sprintf("Panic: %v", err)
				}
				errorResponse.TraceID = traceIDFrom(c)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		traceID := traceIDFrom(c)

		var appErr AppError
		var appErrPtr *AppError
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &appErrPtr):
			appErr = *appErrPtr
		default:
			appErr = NewInternalError("Internal server error")
			if gin.Mode() == gin.DebugMode {
				appErr.Message = err.Error()
			}
		}

		entry := log.WithFields(logrus.Fields{
			"error_type": appErr.Type,
			FieldTraceID: traceID,
			FieldPath:    c.Request.URL.Path,
		})
		if appErr.Details != "" {
			entry = entry.WithField("details", appErr.Details)
		}
		if appErr.Code >= http.StatusInternalServerError {
			entry.WithField(FieldError, err.Error()).Error(appErr.Message)
		} else {
			entry.Warn(appErr.Message)
		}

		errResp := model.NewErrorResponse(appErr.Code, appErr.Message)
		errResp.TraceID = traceID
		c.AbortWithStatusJSON(appErr.Code, errResp)
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}

// traceIDFrom 从上下文中读取追踪ID
func traceIDFrom(c *gin.Context) string {
	if value, exists := c.Get(traceIDKey); exists {
		if traceID, ok := value.(string); ok {
			return traceID
		}
	}
	return ""
}
