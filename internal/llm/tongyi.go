package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const defaultTongyiEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

// TongyiClient 通义千问客户端
type TongyiClient struct {
	cfg        *Config
	endpoint   string
	httpClient *http.Client
}

// NewTongyiClient 创建通义千问客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, "")
	}

	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultTongyiEndpoint
	}

	return &TongyiClient{
		cfg:        cfg,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.cfg.Model
}

// Generate 生成文本，配置了系统提示词时放在用户消息之前
func (c *TongyiClient) Generate(ctx context.Context, prompt string, options ...CallOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "")
	}

	messages := make([]Message, 0, 2)
	if c.cfg.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: c.cfg.SystemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})

	return c.Chat(ctx, messages, options...)
}

// Chat 发送消息列表
func (c *TongyiClient) Chat(ctx context.Context, messages []Message, options ...CallOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	req := &tongyiRequest{
		Model:      c.cfg.Model,
		Input:      tongyiInput{Messages: messages},
		Parameters: c.parameters(applyCallOptions(options)),
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.toResponse(resp)
}

// parameters 单次调用选项优先，其次是客户端配置
func (c *TongyiClient) parameters(opts *CallOptions) *tongyiParameters {
	params := &tongyiParameters{
		ResultFormat: "message",
		MaxTokens:    opts.MaxTokens,
		Temperature:  opts.Temperature,
		TopP:         opts.TopP,
		TopK:         opts.TopK,
		Seed:         opts.Seed,
	}

	if params.MaxTokens == nil && c.cfg.MaxTokens > 0 {
		maxTokens := c.cfg.MaxTokens
		params.MaxTokens = &maxTokens
	}
	if params.Temperature == nil && c.cfg.Temperature > 0 {
		temp := c.cfg.Temperature
		params.Temperature = &temp
	}
	if params.TopP == nil && c.cfg.TopP > 0 {
		topP := c.cfg.TopP
		params.TopP = &topP
	}
	return params
}

// send 发送请求，网络错误、429和5xx按指数退避重试，其余错误立即返回
func (c *TongyiClient) send(ctx context.Context, req *tongyiRequest) (*tongyiResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	body, err := retry.DoWithData(
		func() ([]byte, error) {
			return c.post(ctx, payload)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries+1)),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
		}
		return nil, WrapError(err, ErrCodeNetworkError)
	}

	var resp tongyiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
	}
	if resp.Code != "" {
		return nil, apiError(resp.Code, resp.Message)
	}
	return &resp, nil
}

// post 发送一次HTTP请求，返回200响应的响应体
func (c *TongyiClient) post(ctx context.Context, payload []byte) ([]byte, error) {
	// 每次重试都要重新创建请求体
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, retry.Unrecoverable(NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err)))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewLLMError(ErrCodeNetworkError, fmt.Sprintf("failed to read response: %v", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, statusError(resp.StatusCode, body)
	default:
		return nil, retry.Unrecoverable(statusError(resp.StatusCode, body))
	}
}

// statusError 把非200响应转换为LLMError
func statusError(status int, body []byte) LLMError {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		llmErr := apiError(errResp.Code, errResp.Message)
		if llmErr.Code == ErrCodeServerError {
			llmErr.Code = statusCode(status)
		}
		return llmErr
	}
	return NewLLMError(statusCode(status), fmt.Sprintf("API error (status %d): %s", status, string(body)))
}

func statusCode(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrCodeInvalidAPIKey
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case status == http.StatusBadRequest:
		return ErrCodeInvalidRequest
	default:
		return ErrCodeServerError
	}
}

// apiError 按服务端错误码分类
func apiError(code, message string) LLMError {
	errCode := ErrCodeServerError
	switch code {
	case "InvalidApiKey":
		errCode = ErrCodeInvalidAPIKey
	case "DataInspectionFailed":
		errCode = ErrCodeContentFilter
	case "Throttling", "Throttling.RateQuota":
		errCode = ErrCodeRateLimited
	case "InvalidParameter":
		errCode = ErrCodeInvalidRequest
	}
	return NewLLMError(errCode, fmt.Sprintf("API error: %s (%s)", message, code))
}

// toResponse 提取生成文本和结束原因
func (c *TongyiClient) toResponse(resp *tongyiResponse) (*Response, error) {
	result := &Response{
		ModelName:  c.cfg.Model,
		TokenCount: resp.Usage.TotalTokens,
		FinishTime: time.Now(),
	}

	switch {
	case len(resp.Output.Choices) > 0:
		choice := resp.Output.Choices[0]
		result.Text = choice.Message.Content
		result.FinishReason = choice.FinishReason
	case resp.Output.Text != nil:
		result.Text = *resp.Output.Text
		result.FinishReason = resp.Output.FinishReason
	default:
		return nil, NewLLMError(ErrCodeServerError, "empty response from API")
	}
	return result, nil
}

func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
