package cohere

import "github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"

// Cohere v2 请求结构，system 作为普通消息保留
type chatRequest struct {
	Model            string    `json:"model"`
	Messages         []message `json:"messages"`
	Temperature      *float32  `json:"temperature,omitempty"`
	MaxTokens        int       `json:"max_tokens,omitempty"`
	P                *float32  `json:"p,omitempty"`
	FrequencyPenalty *float32  `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float32  `json:"presence_penalty,omitempty"`
	StopSequences    []string  `json:"stop_sequences,omitempty"`
	Tools            []tool    `json:"tools,omitempty"`
	Stream           bool      `json:"stream"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Cohere v2 响应结构
type chatResponse struct {
	ID           string           `json:"id"`
	FinishReason string           `json:"finish_reason"`
	Message      *responseMessage `json:"message"`
	Usage        *usage           `json:"usage"`
}

type responseMessage struct {
	Role      string        `json:"role"`
	Content   []contentItem `json:"content"`
	ToolCalls []toolCall    `json:"tool_calls"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type usage struct {
	BilledUnits *tokenCount `json:"billed_units"`
	Tokens      *tokenCount `json:"tokens"`
}

type tokenCount struct {
	InputTokens  float64 `json:"input_tokens"`
	OutputTokens float64 `json:"output_tokens"`
}

// finishReasons Cohere 结束原因映射为统一值
var finishReasons = map[string]string{
	"COMPLETE":      string(types.StopReasonStop),
	"STOP_SEQUENCE": string(types.StopReasonStop),
	"MAX_TOKENS":    string(types.StopReasonLength),
	"TOOL_CALL":     string(types.StopReasonToolCalls),
}

func (p *Provider) convertRequest(req types.ChatCompletionRequest, stream bool) *chatRequest {
	wireReq := &chatRequest{
		Model:            req.Model,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		P:                req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		StopSequences:    req.Stop,
		Stream:           stream,
		Messages:         make([]message, 0, len(req.Messages)),
	}
	if wireReq.Model == "" {
		wireReq.Model = p.model
	}

	for _, msg := range req.Messages {
		wireReq.Messages = append(wireReq.Messages, message{Role: string(msg.Role), Content: msg.Content})
	}
	for _, t := range req.Tools {
		wireReq.Tools = append(wireReq.Tools, tool{
			Type:     "function",
			Function: toolFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}
	return wireReq
}

// convertResponse 响应中不带模型名，沿用请求的模型
func (p *Provider) convertResponse(resp *chatResponse, model string) (*types.ChatCompletionResponse, error) {
	if resp.Message == nil {
		return nil, types.NewParseError(p.Name(), "response has no message", types.ErrEmptyResponse)
	}

	msg := types.ChoiceMessage{Role: types.RoleAssistant}
	for _, item := range resp.Message.Content {
		if item.Type == "" || item.Type == "text" {
			msg.Content += item.Text
		}
	}
	for _, tc := range resp.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, types.ParseToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}

	finish, ok := finishReasons[resp.FinishReason]
	if !ok {
		finish = resp.FinishReason
	}

	return &types.ChatCompletionResponse{
		ID:    resp.ID,
		Model: model,
		Choices: []types.Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: finish,
		}},
		Usage: convertUsage(resp.Usage),
	}, nil
}

// convertUsage 优先使用 tokens，缺失时退回 billed_units
func convertUsage(u *usage) types.Usage {
	if u == nil {
		return types.Usage{}
	}
	count := u.Tokens
	if count == nil {
		count = u.BilledUnits
	}
	if count == nil {
		return types.Usage{}
	}
	return types.NewUsage(int(count.InputTokens), int(count.OutputTokens))
}
