package mistral

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/openai"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/transport"
)

// DefaultBaseURL Mistral 官方地址
const DefaultBaseURL = "https://api.mistral.ai/v1"

// defaultContextWindow 列表缺少 max_context_length 时使用
const defaultContextWindow = 32768

// Provider Mistral 适配器，聊天接口沿用 OpenAI 协议
type Provider struct {
	*openai.Provider
}

// New 创建 Mistral Provider
func New(cfg types.Config, opts ...transport.Option) (*Provider, error) {
	p, err := openai.NewCompatible(types.ProviderIDMistral, openai.Compat{}, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{Provider: p}, nil
}

// GetModels 获取模型列表，只保留支持 chat 的模型
func (p *Provider) GetModels(ctx context.Context) ([]types.Model, error) {
	var raw json.RawMessage
	if err := p.Client().Request(ctx, "/models", transport.RequestOptions{Method: "GET"}, &raw); err != nil {
		return nil, err
	}

	data := gjson.GetBytes(raw, "data")
	if !data.IsArray() {
		return nil, types.NewParseError(p.Name(), "models response has no data array", nil)
	}

	var models []types.Model
	data.ForEach(func(_, item gjson.Result) bool {
		caps := item.Get("capabilities")
		if caps.Exists() && !caps.Get("completion_chat").Bool() {
			return true
		}
		models = append(models, parseModel(item))
		return true
	})
	return models, nil
}

func parseModel(item gjson.Result) types.Model {
	id := item.Get("id").String()
	m := types.Model{
		ID:               id,
		Provider:         types.ProviderIDMistral,
		Name:             id,
		ContextWindow:    int(item.Get("max_context_length").Int()),
		Capabilities:     []types.Capability{types.CapabilityChat, types.CapabilityStreaming},
		StreamingSupport: true,
	}
	if name := item.Get("name").String(); name != "" {
		m.Name = name
	}
	if m.ContextWindow <= 0 {
		m.ContextWindow = defaultContextWindow
	}

	caps := item.Get("capabilities")
	if caps.Get("function_calling").Bool() {
		m.Capabilities = append(m.Capabilities, types.CapabilityFunctionCalling)
	}
	if caps.Get("vision").Bool() {
		m.Capabilities = append(m.Capabilities, types.CapabilityVision)
	}
	if caps.Get("completion_fim").Bool() {
		m.Capabilities = append(m.Capabilities, types.CapabilityCode)
	}
	return m
}
