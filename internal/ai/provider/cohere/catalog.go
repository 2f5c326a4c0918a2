package cohere

import "github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"

// Catalog Cohere 常用聊天模型
func Catalog() []types.Model {
	entries := []struct {
		id, name      string
		contextWindow int
		maxOutput     int
		prompt        float64
		completion    float64
		vision        bool
	}{
		{"command-a-03-2025", "Command A", 256000, 8000, 0.0025, 0.01, false},
		{"command-a-vision-07-2025", "Command A Vision", 128000, 8000, 0.0025, 0.01, true},
		{"command-r-plus-08-2024", "Command R+", 128000, 4000, 0.0025, 0.01, false},
		{"command-r-08-2024", "Command R", 128000, 4000, 0.00015, 0.0006, false},
		{"command-r7b-12-2024", "Command R7B", 128000, 4000, 0.0000375, 0.00015, false},
	}

	models := make([]types.Model, 0, len(entries))
	for _, e := range entries {
		caps := []types.Capability{
			types.CapabilityChat,
			types.CapabilityStreaming,
			types.CapabilityFunctionCalling,
		}
		if e.vision {
			caps = append(caps, types.CapabilityVision)
		}
		models = append(models, types.Model{
			ID:               e.id,
			Provider:         types.ProviderIDCohere,
			Name:             e.name,
			ContextWindow:    e.contextWindow,
			MaxOutputTokens:  e.maxOutput,
			Pricing:          &types.Pricing{Prompt: e.prompt, Completion: e.completion},
			Capabilities:     caps,
			StreamingSupport: true,
		})
	}
	return models
}
