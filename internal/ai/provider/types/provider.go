package types

import "context"

// Adapter 统一的服务商适配器接口
type Adapter interface {
	// CreateChatCompletion 创建聊天补全（同步），Usage 总是有值
	CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)

	// StreamChatCompletion 创建聊天补全（流式），只产出内容增量
	StreamChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChunkStream, error)

	// GetModels 获取可用模型列表
	GetModels(ctx context.Context) ([]Model, error)

	// Name 返回 Provider ID
	Name() string

	// Close 关闭适配器，释放资源
	Close() error
}

// 支持的服务商 ID
const (
	ProviderIDOpenAI     = "openai"
	ProviderIDAnthropic  = "anthropic"
	ProviderIDGoogle     = "google"
	ProviderIDOpenRouter = "openrouter"
	ProviderIDCohere     = "cohere"
	ProviderIDMistral    = "mistral"
)

// ProviderIDs 全部服务商 ID
func ProviderIDs() []string {
	return []string{
		ProviderIDOpenAI,
		ProviderIDAnthropic,
		ProviderIDGoogle,
		ProviderIDOpenRouter,
		ProviderIDCohere,
		ProviderIDMistral,
	}
}
