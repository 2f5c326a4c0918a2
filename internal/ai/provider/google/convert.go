package google

import (
	"fmt"

	"google.golang.org/genai"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// 角色映射：assistant 在 Gemini 中称为 model
const (
	roleUser  = "user"
	roleModel = "model"
)

// generateRequest generateContent 请求体
type generateRequest struct {
	Contents          []*genai.Content        `json:"contents"`
	SystemInstruction *genai.Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *genai.GenerationConfig `json:"generationConfig,omitempty"`
	Tools             []*genai.Tool           `json:"tools,omitempty"`
}

var finishReasons = map[genai.FinishReason]string{
	genai.FinishReasonStop:      string(types.StopReasonStop),
	genai.FinishReasonMaxTokens: string(types.StopReasonLength),
}

// toGeminiRole 统一角色转换为 Gemini 角色
func toGeminiRole(role types.Role) string {
	if role == types.RoleAssistant {
		return roleModel
	}
	return roleUser
}

// fromGeminiRole Gemini 角色转换为统一角色
func fromGeminiRole(role string) types.Role {
	if role == roleModel {
		return types.RoleAssistant
	}
	return types.RoleUser
}

// convertRequest 统一请求转换为 Gemini 请求，system 消息移到 systemInstruction
func convertRequest(req types.ChatCompletionRequest) *generateRequest {
	system, rest := types.JoinSystem(req.Messages)

	wireReq := &generateRequest{Contents: make([]*genai.Content, 0, len(rest))}
	if system != "" {
		wireReq.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	for _, msg := range rest {
		wireReq.Contents = append(wireReq.Contents, &genai.Content{
			Role:  toGeminiRole(msg.Role),
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	cfg := &genai.GenerationConfig{
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		StopSequences:    req.Stop,
		MaxOutputTokens:  int32(req.MaxTokens),
	}
	if cfg.Temperature != nil || cfg.TopP != nil || cfg.FrequencyPenalty != nil || cfg.PresencePenalty != nil ||
		len(cfg.StopSequences) > 0 || cfg.MaxOutputTokens > 0 {
		wireReq.GenerationConfig = cfg
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: t.Parameters,
			})
		}
		wireReq.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return wireReq
}

// convertResponse Gemini 响应转换为统一响应
func (p *Provider) convertResponse(model string, resp *genai.GenerateContentResponse) (*types.ChatCompletionResponse, error) {
	if len(resp.Candidates) == 0 {
		msg := "response has no candidates"
		if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
			msg = fmt.Sprintf("prompt blocked: %s", fb.BlockReason)
		}
		return nil, types.NewParseError(p.Name(), msg, types.ErrEmptyResponse)
	}

	out := &types.ChatCompletionResponse{
		ID:      resp.ResponseID,
		Model:   model,
		Choices: make([]types.Choice, 0, len(resp.Candidates)),
		Usage:   convertUsage(resp.UsageMetadata),
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}

	for i, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		text, calls := splitParts(cand.Content)
		role := types.RoleAssistant
		if cand.Content != nil && cand.Content.Role != "" {
			role = fromGeminiRole(cand.Content.Role)
		}
		out.Choices = append(out.Choices, types.Choice{
			Index:        i,
			Message:      types.ChoiceMessage{Role: role, Content: text, ToolCalls: calls},
			FinishReason: finishReason(cand.FinishReason, len(calls) > 0),
		})
	}
	return out, nil
}

// splitParts 拼接文本部分并收集函数调用，thought 部分忽略
func splitParts(content *genai.Content) (string, []types.ToolCall) {
	if content == nil {
		return "", nil
	}
	var text string
	var calls []types.ToolCall
	for i, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		text += part.Text
		if fc := part.FunctionCall; fc != nil {
			id := fc.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			calls = append(calls, types.NewToolCall(id, fc.Name, fc.Args))
		}
	}
	return text, calls
}

func finishReason(reason genai.FinishReason, hasCalls bool) string {
	if hasCalls {
		return string(types.StopReasonToolCalls)
	}
	if mapped, ok := finishReasons[reason]; ok {
		return mapped
	}
	return string(reason)
}

func convertUsage(meta *genai.GenerateContentResponseUsageMetadata) types.Usage {
	if meta == nil {
		return types.Usage{}
	}
	usage := types.NewUsage(int(meta.PromptTokenCount), int(meta.CandidatesTokenCount))
	if meta.TotalTokenCount > 0 {
		usage.TotalTokens = int(meta.TotalTokenCount)
	}
	return usage
}

// convertStreamChunk 每个 SSE 事件都是完整的 GenerateContentResponse
// usageMetadata 在每个事件中累计，只在结束事件上输出
func convertStreamChunk(resp *genai.GenerateContentResponse) (types.StreamChunk, bool) {
	chunk := types.StreamChunk{ID: resp.ResponseID}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return chunk, false
	}

	cand := resp.Candidates[0]
	text, calls := splitParts(cand.Content)
	chunk.Content = text
	for i, call := range calls {
		chunk.ToolCalls = append(chunk.ToolCalls, types.ToolCallDelta{
			Index:     i,
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.RawArguments,
		})
	}
	if cand.FinishReason != "" {
		chunk.FinishReason = finishReason(cand.FinishReason, len(calls) > 0)
		if resp.UsageMetadata != nil {
			usage := convertUsage(resp.UsageMetadata)
			chunk.Usage = &usage
		}
	}
	return chunk, chunk.Content != "" || len(chunk.ToolCalls) > 0 || chunk.FinishReason != ""
}
