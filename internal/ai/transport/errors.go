package transport

import (
	"strings"

	"github.com/tidwall/gjson"
)

// 各服务商错误体中 message 与 code 的位置
//
//	OpenAI/Mistral/OpenRouter: {"error":{"message","code","type"}}
//	Anthropic:                 {"type":"error","error":{"type","message"}}
//	Google:                    {"error":{"code","message","status"}}
//	Cohere:                    {"message": "..."}
var (
	messagePaths = []string{"error.message", "message", "detail", "error"}
	codePaths    = []string{"error.code", "error.status", "error.type", "code"}
)

// extractError 从错误响应体中提取 code 与 message，非 JSON 时返回截断的原文
func extractError(body []byte) (code, message string) {
	if len(body) == 0 {
		return "", ""
	}
	if !gjson.ValidBytes(body) {
		text := strings.TrimSpace(string(body))
		if len(text) > 512 {
			text = text[:512]
		}
		return "", text
	}

	for _, path := range messagePaths {
		if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String && r.Str != "" {
			message = r.Str
			break
		}
	}
	for _, path := range codePaths {
		if r := gjson.GetBytes(body, path); r.Exists() && (r.Type == gjson.String || r.Type == gjson.Number) {
			code = r.String()
			break
		}
	}
	return code, message
}
