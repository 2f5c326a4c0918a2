package google

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"google.golang.org/genai"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/transport"
)

// DefaultBaseURL Gemini API 地址
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Provider Google Gemini 适配器
// 请求与响应结构复用 genai 的 REST 类型，HTTP 由 transport 负责
type Provider struct {
	model  string
	client *transport.Client
}

// New 创建 Google Provider
func New(cfg types.Config, opts ...transport.Option) (*Provider, error) {
	client, err := transport.New(types.ProviderIDGoogle, cfg, map[string]string{
		"x-goog-api-key": cfg.APIKey,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{model: cfg.Model, client: client}, nil
}

// Name 返回 Provider 名称
func (p *Provider) Name() string {
	return types.ProviderIDGoogle
}

// CreateChatCompletion 创建聊天补全（同步）
func (p *Provider) CreateChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	model := p.modelName(req.Model)

	var resp genai.GenerateContentResponse
	endpoint := "/models/" + url.PathEscape(model) + ":generateContent"
	if err := p.client.Request(ctx, endpoint, transport.RequestOptions{Body: convertRequest(req)}, &resp); err != nil {
		return nil, err
	}
	return p.convertResponse(model, &resp)
}

// StreamChatCompletion 创建聊天补全（流式）
func (p *Provider) StreamChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (types.ChunkStream, error) {
	model := p.modelName(req.Model)

	endpoint := "/models/" + url.PathEscape(model) + ":streamGenerateContent?alt=sse"
	events, err := p.client.StreamRequest(ctx, endpoint, transport.RequestOptions{Body: convertRequest(req)})
	if err != nil {
		return nil, err
	}

	return transport.NewChunkStream(events, func(raw json.RawMessage) (types.StreamChunk, bool, error) {
		var resp genai.GenerateContentResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return types.StreamChunk{}, false, types.NewParseError(p.Name(), "unmarshal stream chunk failed", err)
		}
		chunk, emit := convertStreamChunk(&resp)
		return chunk, emit, nil
	}), nil
}

// GetModels 获取支持 generateContent 的模型
func (p *Provider) GetModels(ctx context.Context) ([]types.Model, error) {
	var list genai.ListModelsResponse
	if err := p.client.Request(ctx, "/models?pageSize=1000", transport.RequestOptions{Method: "GET"}, &list); err != nil {
		return nil, err
	}

	models := make([]types.Model, 0, len(list.Models))
	for _, m := range list.Models {
		if m == nil || !supports(m.SupportedActions, "generateContent") || m.InputTokenLimit <= 0 {
			continue
		}
		models = append(models, types.Model{
			ID:               strings.TrimPrefix(m.Name, "models/"),
			Provider:         types.ProviderIDGoogle,
			Name:             m.DisplayName,
			ContextWindow:    int(m.InputTokenLimit),
			MaxOutputTokens:  int(m.OutputTokenLimit),
			Capabilities:     capabilities,
			StreamingSupport: true,
		})
	}
	return models, nil
}

// Close 关闭 Provider
func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) modelName(model string) string {
	if model == "" {
		model = p.model
	}
	return strings.TrimPrefix(model, "models/")
}

var capabilities = []types.Capability{
	types.CapabilityChat,
	types.CapabilityCode,
	types.CapabilityVision,
	types.CapabilityStreaming,
	types.CapabilityFunctionCalling,
	types.CapabilityAttachments,
}

func supports(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
