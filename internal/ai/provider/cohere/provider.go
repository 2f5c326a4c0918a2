package cohere

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/transport"
)

// DefaultBaseURL Cohere 官方地址
const DefaultBaseURL = "https://api.cohere.com"

const chatEndpoint = "/v2/chat"

// Provider Cohere v2 Chat 适配器
type Provider struct {
	model  string
	client *transport.Client
}

// New 创建 Cohere Provider
func New(cfg types.Config, opts ...transport.Option) (*Provider, error) {
	client, err := transport.New(types.ProviderIDCohere, cfg, map[string]string{
		"Authorization": "Bearer " + cfg.APIKey,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{model: cfg.Model, client: client}, nil
}

// Name 返回 Provider 名称
func (p *Provider) Name() string {
	return types.ProviderIDCohere
}

// CreateChatCompletion 创建聊天补全（同步）
func (p *Provider) CreateChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	wireReq := p.convertRequest(req, false)

	var resp chatResponse
	if err := p.client.Request(ctx, chatEndpoint, transport.RequestOptions{Body: wireReq}, &resp); err != nil {
		return nil, err
	}
	return p.convertResponse(&resp, wireReq.Model)
}

// StreamChatCompletion 创建聊天补全（流式）
// 事件类型写在 data 的 type 字段，content-delta 产出文本，tool-call-* 产出工具调用增量，
// message-end 产出结束原因与用量
func (p *Provider) StreamChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (types.ChunkStream, error) {
	events, err := p.client.StreamRequest(ctx, chatEndpoint, transport.RequestOptions{Body: p.convertRequest(req, true)})
	if err != nil {
		return nil, err
	}

	var messageID string
	decode := func(raw json.RawMessage) (types.StreamChunk, bool, error) {
		if !gjson.ValidBytes(raw) {
			return types.StreamChunk{}, false, types.NewParseError(p.Name(), "invalid stream event", nil)
		}
		event := gjson.ParseBytes(raw)

		switch event.Get("type").String() {
		case "message-start":
			messageID = event.Get("id").String()
		case "content-delta":
			text := event.Get("delta.message.content.text").String()
			return types.StreamChunk{ID: messageID, Content: text}, text != "", nil
		case "tool-call-start":
			call := event.Get("delta.message.tool_calls")
			return types.StreamChunk{
				ID: messageID,
				ToolCalls: []types.ToolCallDelta{{
					Index:     int(event.Get("index").Int()),
					ID:        call.Get("id").String(),
					Name:      call.Get("function.name").String(),
					Arguments: call.Get("function.arguments").String(),
				}},
			}, true, nil
		case "tool-call-delta":
			args := event.Get("delta.message.tool_calls.function.arguments").String()
			return types.StreamChunk{
				ID:        messageID,
				ToolCalls: []types.ToolCallDelta{{Index: int(event.Get("index").Int()), Arguments: args}},
			}, args != "", nil
		case "message-end":
			return finishChunk(messageID, event.Get("delta"))
		}
		return types.StreamChunk{}, false, nil
	}

	return transport.NewChunkStream(events, decode), nil
}

func finishChunk(messageID string, delta gjson.Result) (types.StreamChunk, bool, error) {
	chunk := types.StreamChunk{ID: messageID}
	if reason := delta.Get("finish_reason").String(); reason != "" {
		finish, ok := finishReasons[reason]
		if !ok {
			finish = reason
		}
		chunk.FinishReason = finish
	}
	if raw := delta.Get("usage"); raw.Exists() {
		var u usage
		if err := json.Unmarshal([]byte(raw.Raw), &u); err != nil {
			return types.StreamChunk{}, false, types.NewParseError(types.ProviderIDCohere, "unmarshal stream usage failed", err)
		}
		if u.Tokens != nil || u.BilledUnits != nil {
			total := convertUsage(&u)
			chunk.Usage = &total
		}
	}
	return chunk, chunk.FinishReason != "" || chunk.Usage != nil, nil
}

// GetModels 返回静态模型目录
func (p *Provider) GetModels(ctx context.Context) ([]types.Model, error) {
	return Catalog(), nil
}

// Close 关闭 Provider
func (p *Provider) Close() error {
	return p.client.Close()
}
