package openrouter

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/openai"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/transport"
)

// DefaultBaseURL OpenRouter 地址
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// 可选的应用标识头，用于 OpenRouter 排行榜
const (
	HeaderReferer = "HTTP-Referer"
	HeaderTitle   = "X-Title"
)

// Provider OpenRouter 适配器，聊天接口与 OpenAI 协议一致
type Provider struct {
	*openai.Provider
}

// New 创建 OpenRouter Provider
func New(cfg types.Config, opts ...transport.Option) (*Provider, error) {
	p, err := openai.NewCompatible(types.ProviderIDOpenRouter, openai.Compat{StreamUsage: true}, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{Provider: p}, nil
}

// GetModels 解析 /models，OpenRouter 返回上下文长度与按 token 计的字符串价格
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
		m := parseModel(item)
		if m.Validate() == nil {
			models = append(models, m)
		}
		return true
	})
	return models, nil
}

func parseModel(item gjson.Result) types.Model {
	m := types.Model{
		ID:               item.Get("id").String(),
		Provider:         types.ProviderIDOpenRouter,
		Name:             item.Get("name").String(),
		ContextWindow:    int(item.Get("context_length").Int()),
		MaxOutputTokens:  int(item.Get("top_provider.max_completion_tokens").Int()),
		Capabilities:     []types.Capability{types.CapabilityChat, types.CapabilityStreaming},
		StreamingSupport: true,
	}
	if m.Name == "" {
		m.Name = m.ID
	}

	prompt, perr := perThousand(item.Get("pricing.prompt"))
	completion, cerr := perThousand(item.Get("pricing.completion"))
	if perr == nil && cerr == nil {
		m.Pricing = &types.Pricing{Prompt: prompt, Completion: completion}
	}

	for _, modality := range item.Get("architecture.input_modalities").Array() {
		if modality.String() == "image" {
			m.Capabilities = append(m.Capabilities, types.CapabilityVision, types.CapabilityAttachments)
			break
		}
	}
	for _, param := range item.Get("supported_parameters").Array() {
		if param.String() == "tools" {
			m.Capabilities = append(m.Capabilities, types.CapabilityFunctionCalling)
			break
		}
	}
	return m
}

// perThousand 价格字段为每 token 的字符串，如 "0.000003"
func perThousand(v gjson.Result) (float64, error) {
	if !v.Exists() {
		return 0, strconv.ErrSyntax
	}
	f, err := strconv.ParseFloat(v.String(), 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		// 动态定价模型用 -1 表示
		return 0, strconv.ErrRange
	}
	return f * 1000, nil
}
