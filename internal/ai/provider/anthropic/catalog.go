package anthropic

import "github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"

var capabilities = []types.Capability{
	types.CapabilityChat,
	types.CapabilityCode,
	types.CapabilityVision,
	types.CapabilityStreaming,
	types.CapabilityFunctionCalling,
	types.CapabilityAttachments,
}

// Catalog Anthropic 没有公开的免鉴权模型列表，使用静态目录
func Catalog() []types.Model {
	entries := []struct {
		id, name   string
		maxOutput  int
		prompt     float64
		completion float64
	}{
		{"claude-opus-4-1", "Claude Opus 4.1", 32000, 0.015, 0.075},
		{"claude-sonnet-4-5", "Claude Sonnet 4.5", 64000, 0.003, 0.015},
		{"claude-sonnet-4-0", "Claude Sonnet 4", 64000, 0.003, 0.015},
		{"claude-3-7-sonnet-latest", "Claude Sonnet 3.7", 64000, 0.003, 0.015},
		{"claude-3-5-haiku-latest", "Claude Haiku 3.5", 8192, 0.0008, 0.004},
	}

	models := make([]types.Model, 0, len(entries))
	for _, e := range entries {
		models = append(models, types.Model{
			ID:               e.id,
			Provider:         types.ProviderIDAnthropic,
			Name:             e.name,
			ContextWindow:    200000,
			MaxOutputTokens:  e.maxOutput,
			Pricing:          &types.Pricing{Prompt: e.prompt, Completion: e.completion},
			Capabilities:     capabilities,
			StreamingSupport: true,
		})
	}
	return models
}
