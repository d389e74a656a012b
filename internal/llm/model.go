package llm

import "time"

// MessageRole 消息角色
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message 对话消息
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// 结束原因
const (
	FinishStop   = "stop"   // 正常结束
	FinishLength = "length" // 达到max_tokens被截断
)

// Response 一次生成调用的结果
type Response struct {
	Text         string    // 生成的文本
	FinishReason string    // 结束原因
	TokenCount   int       // 使用的token总数
	ModelName    string    // 实际使用的模型
	FinishTime   time.Time // 完成时间
}

// Truncated 生成是否因为长度限制被截断
// 被截断的文本末尾通常是半句话，需要经过 article.TrimIncomplete 处理
func (r *Response) Truncated() bool {
	return r != nil && r.FinishReason == FinishLength
}

// 通义千问模型名称
const (
	ModelQwenTurbo = "qwen-turbo" // 速度最快，适合章节草稿
	ModelQwenPlus  = "qwen-plus"
	ModelQwenMax   = "qwen-max"
	ModelQwenLong  = "qwen-long" // 长上下文，适合整篇润色
)

// tongyiRequest 通义千问文本生成请求
type tongyiRequest struct {
	Model      string            `json:"model"`
	Input      tongyiInput       `json:"input"`
	Parameters *tongyiParameters `json:"parameters,omitempty"`
}

type tongyiInput struct {
	Messages []Message `json:"messages"`
}

// tongyiParameters 请求参数，指针字段为nil时使用服务端默认值
type tongyiParameters struct {
	ResultFormat string   `json:"result_format"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	Temperature  *float32 `json:"temperature,omitempty"`
	TopP         *float32 `json:"top_p,omitempty"`
	TopK         *int     `json:"top_k,omitempty"`
	Seed         *int     `json:"seed,omitempty"`
}

// tongyiResponse 通义千问响应，result_format为message时结果在Choices中
type tongyiResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		Text         *string `json:"text"`
		FinishReason string  `json:"finish_reason"`
		Choices      []struct {
			FinishReason string  `json:"finish_reason"`
			Message      Message `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}
