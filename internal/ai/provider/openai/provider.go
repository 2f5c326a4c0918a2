package openai

import (
	"context"
	"encoding/json"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/transport"
)

// DefaultBaseURL OpenAI 官方地址
const DefaultBaseURL = "https://api.openai.com/v1"

// Provider OpenAI 协议适配器
// OpenRouter、Mistral 等兼容服务商复用同一套请求与流式解析
type Provider struct {
	name   string
	model  string
	compat Compat
	client *transport.Client
}

// Compat 兼容服务商之间的协议差异
type Compat struct {
	// StreamUsage 流式请求携带 stream_options.include_usage，仅 OpenAI 与 OpenRouter 支持
	StreamUsage bool
}

// New 创建 OpenAI Provider
func New(cfg types.Config, opts ...transport.Option) (*Provider, error) {
	return NewCompatible(types.ProviderIDOpenAI, Compat{StreamUsage: true}, cfg, opts...)
}

// NewCompatible 创建 OpenAI 兼容协议的 Provider，name 用于错误与日志
func NewCompatible(name string, compat Compat, cfg types.Config, opts ...transport.Option) (*Provider, error) {
	client, err := transport.New(name, cfg, map[string]string{
		"Authorization": "Bearer " + cfg.APIKey,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{name: name, model: cfg.Model, compat: compat, client: client}, nil
}

// Name 返回 Provider 名称
func (p *Provider) Name() string {
	return p.name
}

// Client 返回底层传输客户端，供兼容服务商扩展接口使用
func (p *Provider) Client() *transport.Client {
	return p.client
}

// CreateChatCompletion 创建聊天补全（同步）
func (p *Provider) CreateChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	wireReq := p.convertRequest(req, false)

	var resp goopenai.ChatCompletionResponse
	if err := p.client.Request(ctx, "/chat/completions", transport.RequestOptions{Body: wireReq}, &resp); err != nil {
		return nil, err
	}
	return p.convertResponse(&resp)
}

// StreamChatCompletion 创建聊天补全（流式）
func (p *Provider) StreamChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (types.ChunkStream, error) {
	wireReq := p.convertRequest(req, true)

	events, err := p.client.StreamRequest(ctx, "/chat/completions", transport.RequestOptions{Body: wireReq})
	if err != nil {
		return nil, err
	}
	return transport.NewChunkStream(events, p.decodeStreamEvent), nil
}

// GetModels 获取 /models 模型列表
func (p *Provider) GetModels(ctx context.Context) ([]types.Model, error) {
	var list goopenai.ModelsList
	if err := p.client.Request(ctx, "/models", transport.RequestOptions{Method: "GET"}, &list); err != nil {
		return nil, err
	}

	models := make([]types.Model, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, catalogModel(p.name, m.ID))
	}
	return models, nil
}

// Close 关闭 Provider
func (p *Provider) Close() error {
	return p.client.Close()
}

// decodeStreamEvent 只产出带内容、工具调用、结束原因或用量的事件
func (p *Provider) decodeStreamEvent(event json.RawMessage) (types.StreamChunk, bool, error) {
	if err := streamError(p.name, event); err != nil {
		return types.StreamChunk{}, false, err
	}
	var resp goopenai.ChatCompletionStreamResponse
	if err := json.Unmarshal(event, &resp); err != nil {
		return types.StreamChunk{}, false, types.NewParseError(p.name, "unmarshal stream chunk failed", err)
	}
	return convertStreamChunk(&resp)
}
