package chat

import (
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// Options 单次调用选项
type Options struct {
	// Stream 为 true 时 Chat 走流式接口并聚合结果，Parallel 直接拒绝
	Stream bool

	Temperature      *float32
	TopP             *float32
	FrequencyPenalty *float32
	PresencePenalty  *float32
	MaxTokens        int
	Stop             []string

	// Tools 直接提供的工具定义
	Tools []types.ToolDefinition
	// ToolNames 从工具注册表按名称取定义，需要 Service 配置 WithTools
	ToolNames []string

	// ReserveTokens 为回复预留的 token 数，0 使用上下文管理器默认值
	ReserveTokens int
	// MaxMessages 消息条数上限，0 使用上下文管理器默认值
	MaxMessages int
}

// reserve 转换为 contextwindow.Manager.Trim 的参数，负数表示使用默认值
func (o Options) reserve() int {
	if o.ReserveTokens <= 0 {
		return -1
	}
	return o.ReserveTokens
}

// request 构造发给适配器的请求，每次调用一个新实例
func (o Options) request(model string, messages []types.Message, tools []types.ToolDefinition) types.ChatCompletionRequest {
	req := types.ChatCompletionRequest{
		Model:            model,
		Messages:         messages,
		Temperature:      o.Temperature,
		TopP:             o.TopP,
		FrequencyPenalty: o.FrequencyPenalty,
		PresencePenalty:  o.PresencePenalty,
		MaxTokens:        o.MaxTokens,
		Tools:            tools,
	}
	if len(o.Stop) > 0 {
		req.Stop = append([]string(nil), o.Stop...)
	}
	return req
}
