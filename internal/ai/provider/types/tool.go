package types

import (
	"encoding/json"
	"strings"
)

// ToolDefinition 暴露给模型的工具描述
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// ToolCall 模型发起的工具调用
type ToolCall struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments"`
	RawArguments string         `json:"raw_arguments,omitempty"`
}

// ParseToolCall 解析服务商返回的 JSON 字符串参数
// 参数无法解析时保留原文，Arguments 为空 map
func ParseToolCall(id, name, rawArguments string) ToolCall {
	call := ToolCall{
		ID:           id,
		Name:         name,
		Arguments:    map[string]any{},
		RawArguments: rawArguments,
	}
	raw := strings.TrimSpace(rawArguments)
	if raw == "" {
		return call
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil && args != nil {
		call.Arguments = args
	}
	return call
}

// NewToolCall 从已解码的参数构造工具调用（Anthropic 等直接返回对象）
func NewToolCall(id, name string, arguments map[string]any) ToolCall {
	if arguments == nil {
		arguments = map[string]any{}
	}
	raw, _ := json.Marshal(arguments)
	return ToolCall{
		ID:           id,
		Name:         name,
		Arguments:    arguments,
		RawArguments: string(raw),
	}
}
