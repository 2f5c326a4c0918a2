package types

// ChatCompletionRequest 聊天补全请求
// 每次调用单独构造，不在并发调用之间共享
type ChatCompletionRequest struct {
	Model            string           `json:"model"`
	Messages         []Message        `json:"messages"`
	Temperature      *float32         `json:"temperature,omitempty"`
	MaxTokens        int              `json:"max_tokens,omitempty"`
	TopP             *float32         `json:"top_p,omitempty"`
	FrequencyPenalty *float32         `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float32         `json:"presence_penalty,omitempty"`
	Stop             []string         `json:"stop,omitempty"`
	Tools            []ToolDefinition `json:"tools,omitempty"`
	Stream           bool             `json:"stream,omitempty"`
}

// Float32 返回指针，便于设置可选采样参数
func Float32(v float32) *float32 {
	return &v
}
