package llm

import (
	"context"
	"time"
)

// Client 文章生成使用的大模型客户端
type Client interface {
	// Generate 以系统提示词加单条用户消息的形式生成文本
	Generate(ctx context.Context, prompt string, options ...CallOption) (*Response, error)

	// Chat 直接发送完整的消息列表
	Chat(ctx context.Context, messages []Message, options ...CallOption) (*Response, error)

	// Name 返回模型名称
	Name() string
}

// Config 客户端配置
type Config struct {
	APIKey       string
	BaseURL      string // 为空时使用服务商默认端点
	Model        string
	SystemPrompt string // Generate 使用的系统提示词，为空时不发送系统消息
	Timeout      time.Duration
	MaxRetries   int // 传输层重试次数，不含首次请求
	MaxTokens    int
	Temperature  float32
	TopP         float32
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Model:        ModelQwenTurbo,
		SystemPrompt: WriterSystemPrompt,
		Timeout:      60 * time.Second,
		MaxRetries:   2,
		MaxTokens:    2048,
		Temperature:  0.7,
		TopP:         0.9,
	}
}

// Option 客户端配置选项
type Option func(*Config)

func WithAPIKey(apiKey string) Option {
	return func(c *Config) { c.APIKey = apiKey }
}

func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithSystemPrompt 替换默认的系统提示词
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) { c.SystemPrompt = prompt }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

func WithMaxRetries(retries int) Option {
	return func(c *Config) { c.MaxRetries = retries }
}

func WithMaxTokens(tokens int) Option {
	return func(c *Config) { c.MaxTokens = tokens }
}

func WithTemperature(temp float32) Option {
	return func(c *Config) { c.Temperature = temp }
}

func WithTopP(topP float32) Option {
	return func(c *Config) { c.TopP = topP }
}

// NewConfig 在默认配置上应用选项
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// CallOptions 单次调用的参数，覆盖客户端配置
type CallOptions struct {
	MaxTokens   *int
	Temperature *float32
	TopP        *float32
	TopK        *int
	Seed        *int // 固定种子使润色结果可复现
}

// CallOption 单次调用选项
type CallOption func(*CallOptions)

func WithCallMaxTokens(tokens int) CallOption {
	return func(o *CallOptions) { o.MaxTokens = &tokens }
}

func WithCallTemperature(temp float32) CallOption {
	return func(o *CallOptions) { o.Temperature = &temp }
}

func WithCallTopP(topP float32) CallOption {
	return func(o *CallOptions) { o.TopP = &topP }
}

func WithCallTopK(topK int) CallOption {
	return func(o *CallOptions) { o.TopK = &topK }
}

func WithCallSeed(seed int) CallOption {
	return func(o *CallOptions) { o.Seed = &seed }
}

func applyCallOptions(options []CallOption) *CallOptions {
	opts := &CallOptions{}
	for _, opt := range options {
		opt(opts)
	}
	return opts
}

// Factory 客户端工厂
type Factory func(opts ...Option) (Client, error)

var clientFactories = make(map[string]Factory)

// RegisterClient 按服务商名称注册工厂，在各实现的init中调用
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 按服务商名称创建客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, ok := clientFactories[name]
	if !ok {
		return nil, NewLLMError(ErrCodeInvalidRequest, "llm provider not registered: "+name)
	}
	return factory(opts...)
}
