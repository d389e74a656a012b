package llm

import (
	"errors"
	"fmt"
)

// ErrorCode 大模型调用错误码
type ErrorCode int

const (
	ErrCodeInvalidAPIKey ErrorCode = iota + 1001
	ErrCodeInvalidRequest
	ErrCodeNetworkError
	ErrCodeRateLimited
	ErrCodeServerError
	ErrCodeTimeout
	ErrCodeEmptyPrompt
	ErrCodeContentFilter // 服务端内容审核拒绝
	ErrCodeModelOverload
	ErrCodeContextTooLong
)

var codeNames = map[ErrorCode]string{
	ErrCodeInvalidAPIKey:  "invalid API key",
	ErrCodeInvalidRequest: "invalid request",
	ErrCodeNetworkError:   "network error",
	ErrCodeRateLimited:    "rate limited",
	ErrCodeServerError:    "server error",
	ErrCodeTimeout:        "timeout",
	ErrCodeEmptyPrompt:    "empty prompt",
	ErrCodeContentFilter:  "content filtered",
	ErrCodeModelOverload:  "model overloaded",
	ErrCodeContextTooLong: "context too long",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code %d", int(c))
}

// Retryable 限流、网络和服务端的临时故障可以重试，请求本身有问题时重试无意义
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrCodeNetworkError, ErrCodeRateLimited, ErrCodeServerError, ErrCodeTimeout, ErrCodeModelOverload:
		return true
	}
	return false
}

// LLMError 大模型调用错误
type LLMError struct {
	Code    ErrorCode
	Message string
}

func (e LLMError) Error() string {
	if e.Message == "" {
		return "llm: " + e.Code.String()
	}
	return fmt.Sprintf("llm: %s: %s", e.Code, e.Message)
}

// NewLLMError message为空时只输出错误码名称
func NewLLMError(code ErrorCode, message string) LLMError {
	return LLMError{Code: code, Message: message}
}

// WrapError 把普通错误归入code，已经是LLMError时保留原来的错误码
func WrapError(err error, code ErrorCode) LLMError {
	var llmErr LLMError
	switch {
	case err == nil:
		return LLMError{Code: code}
	case errors.As(err, &llmErr):
		return llmErr
	default:
		return LLMError{Code: code, Message: err.Error()}
	}
}

// IsRetryable 非LLMError（例如连接被重置）按可重试处理
func IsRetryable(err error) bool {
	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return llmErr.Code.Retryable()
	}
	return true
}
