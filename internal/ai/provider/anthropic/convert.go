package anthropic

import (
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// Anthropic 内部请求结构
type messageRequest struct {
	Model         string    `json:"model"`
	Messages      []message `json:"messages"`
	System        string    `json:"system,omitempty"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   *float32  `json:"temperature,omitempty"`
	TopP          *float32  `json:"top_p,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Tools         []tool    `json:"tools,omitempty"`
	Stream        bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// Anthropic 内部响应结构
type messageResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Anthropic 流式事件
type streamEvent struct {
	Type         string           `json:"type"`
	Index        int              `json:"index"`
	Delta        *streamDelta     `json:"delta,omitempty"`
	Message      *messageResponse `json:"message,omitempty"`
	ContentBlock *contentBlock    `json:"content_block,omitempty"`
	Usage        *usage           `json:"usage,omitempty"`
	Error        *apiError        `json:"error,omitempty"`
}

type streamDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// stopReasons Anthropic 停止原因映射为统一值
var stopReasons = map[string]string{
	"end_turn":      string(types.StopReasonStop),
	"stop_sequence": string(types.StopReasonStop),
	"max_tokens":    string(types.StopReasonLength),
	"tool_use":      string(types.StopReasonToolCalls),
}

// convertRequest 统一请求转换为 Anthropic 请求，system 消息移到顶层字段
func (p *Provider) convertRequest(req types.ChatCompletionRequest, stream bool) *messageRequest {
	system, rest := types.JoinSystem(req.Messages)

	wireReq := &messageRequest{
		Model:         req.Model,
		System:        system,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		Stream:        stream,
		Messages:      make([]message, 0, len(rest)),
	}
	if wireReq.Model == "" {
		wireReq.Model = p.model
	}
	if wireReq.MaxTokens <= 0 {
		wireReq.MaxTokens = defaultMaxTokens
	}

	for _, msg := range rest {
		wireReq.Messages = append(wireReq.Messages, message{Role: string(msg.Role), Content: msg.Content})
	}
	for _, t := range req.Tools {
		schema := t.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		wireReq.Tools = append(wireReq.Tools, tool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return wireReq
}

// convertResponse Anthropic 响应转换为统一响应
func (p *Provider) convertResponse(resp *messageResponse) (*types.ChatCompletionResponse, error) {
	if resp.Type != "" && resp.Type != "message" {
		return nil, types.NewParseError(p.Name(), "unexpected response type "+resp.Type, nil)
	}
	if len(resp.Content) == 0 && resp.StopReason == "" {
		return nil, types.NewParseError(p.Name(), "response has no content", types.ErrEmptyResponse)
	}

	msg := types.ChoiceMessage{Role: types.RoleAssistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			msg.Content += block.Text
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, types.NewToolCall(block.ID, block.Name, block.Input))
		}
	}

	finish, ok := stopReasons[resp.StopReason]
	if !ok {
		finish = resp.StopReason
	}

	return &types.ChatCompletionResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Choices: []types.Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: finish,
		}},
		Usage: types.NewUsage(resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}, nil
}
