package anthropic

import (
	"context"
	"encoding/json"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/transport"
)

const (
	// DefaultBaseURL Anthropic 官方地址
	DefaultBaseURL = "https://api.anthropic.com"

	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

// Provider Anthropic Provider 实现（直接处理协议转换）
type Provider struct {
	model  string
	client *transport.Client
}

// New 创建 Anthropic Provider
func New(cfg types.Config, opts ...transport.Option) (*Provider, error) {
	client, err := transport.New(types.ProviderIDAnthropic, cfg, map[string]string{
		"x-api-key":         cfg.APIKey,
		"anthropic-version": apiVersion,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{model: cfg.Model, client: client}, nil
}

// Name 返回 Provider 名称
func (p *Provider) Name() string {
	return types.ProviderIDAnthropic
}

// CreateChatCompletion 创建聊天补全（同步）
func (p *Provider) CreateChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	var resp messageResponse
	if err := p.client.Request(ctx, "/v1/messages", transport.RequestOptions{Body: p.convertRequest(req, false)}, &resp); err != nil {
		return nil, err
	}
	return p.convertResponse(&resp)
}

// StreamChatCompletion 创建聊天补全（流式）
// content_block_* 产出内容，message_delta 产出结束原因与用量，ping 等事件直接跳过
func (p *Provider) StreamChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (types.ChunkStream, error) {
	events, err := p.client.StreamRequest(ctx, "/v1/messages", transport.RequestOptions{Body: p.convertRequest(req, true)})
	if err != nil {
		return nil, err
	}

	var (
		messageID   string
		inputTokens int
	)
	decode := func(raw json.RawMessage) (types.StreamChunk, bool, error) {
		var event streamEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return types.StreamChunk{}, false, types.NewParseError(p.Name(), "unmarshal stream event failed", err)
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				messageID = event.Message.ID
				inputTokens = event.Message.Usage.InputTokens
			}
		case "content_block_start":
			if block := event.ContentBlock; block != nil && block.Type == "tool_use" {
				return types.StreamChunk{
					ID:        messageID,
					ToolCalls: []types.ToolCallDelta{{Index: event.Index, ID: block.ID, Name: block.Name}},
				}, true, nil
			}
		case "content_block_delta":
			if event.Delta == nil {
				return types.StreamChunk{}, false, nil
			}
			switch event.Delta.Type {
			case "text_delta":
				return types.StreamChunk{ID: messageID, Content: event.Delta.Text}, event.Delta.Text != "", nil
			case "input_json_delta":
				return types.StreamChunk{
					ID:        messageID,
					ToolCalls: []types.ToolCallDelta{{Index: event.Index, Arguments: event.Delta.PartialJSON}},
				}, true, nil
			}
		case "message_delta":
			return p.finishChunk(messageID, inputTokens, &event)
		case "error":
			return types.StreamChunk{}, false, p.streamError(event.Error)
		}
		return types.StreamChunk{}, false, nil
	}

	return transport.NewChunkStream(events, decode), nil
}

// GetModels 返回静态模型目录
func (p *Provider) GetModels(ctx context.Context) ([]types.Model, error) {
	return Catalog(), nil
}

// Close 关闭 Provider
func (p *Provider) Close() error {
	return p.client.Close()
}

// finishChunk message_delta 携带 stop_reason 与累计输出 token，输入 token 取自 message_start
func (p *Provider) finishChunk(messageID string, inputTokens int, event *streamEvent) (types.StreamChunk, bool, error) {
	chunk := types.StreamChunk{ID: messageID}
	if event.Delta != nil && event.Delta.StopReason != "" {
		finish, ok := stopReasons[event.Delta.StopReason]
		if !ok {
			finish = event.Delta.StopReason
		}
		chunk.FinishReason = finish
	}
	if event.Usage != nil {
		u := types.NewUsage(inputTokens, event.Usage.OutputTokens)
		chunk.Usage = &u
	}
	return chunk, chunk.FinishReason != "" || chunk.Usage != nil, nil
}

func (p *Provider) streamError(e *apiError) error {
	if e == nil {
		return types.NewParseError(p.Name(), "error event without body", nil)
	}
	errType := types.ErrorType(e.Type)
	switch errType {
	case types.ErrorTypeOverloaded, types.ErrorTypeRateLimit, types.ErrorTypeAPI,
		types.ErrorTypeInvalidRequest, types.ErrorTypeAuthentication, types.ErrorTypePermission,
		types.ErrorTypeNotFound, types.ErrorTypeRequestTooLarge:
	default:
		errType = types.ErrorTypeAPI
	}
	return &types.ProviderError{
		Type:     errType,
		Provider: p.Name(),
		Code:     e.Type,
		Message:  e.Message,
	}
}
