package openai

import (
	"strings"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// defaultContextWindow /models 不返回上下文长度时使用
const defaultContextWindow = 8192

// knownModels 已知模型的上下文长度与定价（每 1000 tokens，美元），按前缀匹配
var knownModels = []struct {
	prefix        string
	contextWindow int
	maxOutput     int
	pricing       *types.Pricing
	capabilities  []types.Capability
}{
	{"gpt-4o-mini", 128000, 16384, &types.Pricing{Prompt: 0.00015, Completion: 0.0006}, visionChat},
	{"gpt-4o", 128000, 16384, &types.Pricing{Prompt: 0.0025, Completion: 0.01}, visionChat},
	{"gpt-4.1", 1047576, 32768, &types.Pricing{Prompt: 0.002, Completion: 0.008}, visionChat},
	{"gpt-4-turbo", 128000, 4096, &types.Pricing{Prompt: 0.01, Completion: 0.03}, visionChat},
	{"gpt-4", 8192, 8192, &types.Pricing{Prompt: 0.03, Completion: 0.06}, textChat},
	{"gpt-3.5-turbo", 16385, 4096, &types.Pricing{Prompt: 0.0005, Completion: 0.0015}, textChat},
	{"o1", 200000, 100000, &types.Pricing{Prompt: 0.015, Completion: 0.06}, textChat},
	{"o3", 200000, 100000, &types.Pricing{Prompt: 0.002, Completion: 0.008}, textChat},
	{"o4-mini", 200000, 100000, &types.Pricing{Prompt: 0.0011, Completion: 0.0044}, textChat},
}

var (
	textChat = []types.Capability{
		types.CapabilityChat, types.CapabilityCode, types.CapabilityStreaming, types.CapabilityFunctionCalling,
	}
	visionChat = append([]types.Capability{types.CapabilityVision, types.CapabilityAttachments}, textChat...)
)

// catalogModel 用已知信息补全 /models 返回的模型 ID
func catalogModel(provider, id string) types.Model {
	m := types.Model{
		ID:               id,
		Provider:         provider,
		Name:             id,
		ContextWindow:    defaultContextWindow,
		Capabilities:     []types.Capability{types.CapabilityChat, types.CapabilityStreaming},
		StreamingSupport: true,
	}
	for _, known := range knownModels {
		if strings.HasPrefix(id, known.prefix) {
			m.ContextWindow = known.contextWindow
			m.MaxOutputTokens = known.maxOutput
			m.Pricing = known.pricing
			m.Capabilities = known.capabilities
			break
		}
	}
	return m
}
