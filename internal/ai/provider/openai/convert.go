package openai

import (
	"encoding/json"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// chatRequest 覆盖 go-openai 中带 omitempty 的采样字段，显式的 0 也会发送
// 外层同名字段在 JSON 编码时优先于内嵌结构体的字段
type chatRequest struct {
	goopenai.ChatCompletionRequest
	Temperature      *float32 `json:"temperature,omitempty"`
	TopP             *float32 `json:"top_p,omitempty"`
	PresencePenalty  *float32 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float32 `json:"frequency_penalty,omitempty"`
}

// convertRequest 统一请求转换为 OpenAI 请求
func (p *Provider) convertRequest(req types.ChatCompletionRequest, stream bool) chatRequest {
	wireReq := chatRequest{
		ChatCompletionRequest: goopenai.ChatCompletionRequest{
			Model:     req.Model,
			MaxTokens: req.MaxTokens,
			Stop:      req.Stop,
			Stream:    stream,
		},
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
	}
	if wireReq.Model == "" {
		wireReq.Model = p.model
	}
	if stream && p.compat.StreamUsage {
		wireReq.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}
	}

	wireReq.Messages = make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		wireReq.Messages = append(wireReq.Messages, goopenai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	for _, tool := range req.Tools {
		wireReq.Tools = append(wireReq.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return wireReq
}

// convertResponse OpenAI 响应转换为统一响应
func (p *Provider) convertResponse(resp *goopenai.ChatCompletionResponse) (*types.ChatCompletionResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, types.NewParseError(p.name, "response has no choices", types.ErrEmptyResponse)
	}

	out := &types.ChatCompletionResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: make([]types.Choice, 0, len(resp.Choices)),
		Usage:   convertUsage(resp.Usage),
	}
	for _, choice := range resp.Choices {
		out.Choices = append(out.Choices, types.Choice{
			Index: choice.Index,
			Message: types.ChoiceMessage{
				Role:      types.RoleAssistant,
				Content:   choice.Message.Content,
				ToolCalls: convertToolCalls(choice.Message.ToolCalls, choice.Message.FunctionCall),
			},
			FinishReason: string(choice.FinishReason),
		})
	}
	return out, nil
}

func convertUsage(u goopenai.Usage) types.Usage {
	usage := types.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

func convertToolCalls(calls []goopenai.ToolCall, legacy *goopenai.FunctionCall) []types.ToolCall {
	var out []types.ToolCall
	for _, call := range calls {
		out = append(out, types.ParseToolCall(call.ID, call.Function.Name, call.Function.Arguments))
	}
	if legacy != nil && legacy.Name != "" {
		out = append(out, types.ParseToolCall("", legacy.Name, legacy.Arguments))
	}
	return out
}

// convertStreamChunk 把流式响应转换为统一增量，空的 role 事件不产出
func convertStreamChunk(resp *goopenai.ChatCompletionStreamResponse) (types.StreamChunk, bool, error) {
	chunk := types.StreamChunk{ID: resp.ID}
	if resp.Usage != nil {
		usage := convertUsage(*resp.Usage)
		chunk.Usage = &usage
	}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		chunk.Content = choice.Delta.Content
		chunk.FinishReason = string(choice.FinishReason)
		for i, call := range choice.Delta.ToolCalls {
			index := i
			if call.Index != nil {
				index = *call.Index
			}
			chunk.ToolCalls = append(chunk.ToolCalls, types.ToolCallDelta{
				Index:     index,
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
		if fc := choice.Delta.FunctionCall; fc != nil {
			chunk.FunctionCall = &types.FunctionCallDelta{Name: fc.Name, Arguments: fc.Arguments}
		}
	}

	emit := chunk.Content != "" || len(chunk.ToolCalls) > 0 || chunk.FunctionCall != nil ||
		chunk.FinishReason != "" || chunk.Usage != nil
	return chunk, emit, nil
}

// streamError 兼容服务商会在流中以 {"error":{...}} 返回错误
func streamError(provider string, event json.RawMessage) error {
	var body struct {
		Error *struct {
			Message string          `json:"message"`
			Code    json.RawMessage `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(event, &body); err != nil || body.Error == nil {
		return nil
	}
	return &types.ProviderError{
		Type:     types.ErrorTypeAPI,
		Provider: provider,
		Code:     strings.Trim(string(body.Error.Code), `"`),
		Message:  body.Error.Message,
	}
}
