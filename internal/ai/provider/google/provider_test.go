package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/transport"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(types.Config{APIKey: "g-test", BaseURL: srv.URL, Model: "gemini-2.5-flash"},
		transport.WithLogger(logger.Nop()))
	require.NoError(t, err)
	return p
}

func TestRoleMapping(t *testing.T) {
	tests := []struct {
		role types.Role
		want string
	}{
		{types.RoleUser, "user"},
		{types.RoleAssistant, "model"},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, toGeminiRole(tt.role))
			assert.Equal(t, tt.role, fromGeminiRole(tt.want))
		})
	}
}

func TestConvertRequest(t *testing.T) {
	req := convertRequest(types.ChatCompletionRequest{
		Messages: []types.Message{
			types.NewMessage(types.RoleSystem, "you are terse"),
			types.NewMessage(types.RoleUser, "hi"),
			types.NewMessage(types.RoleAssistant, "hello"),
			types.NewMessage(types.RoleUser, "2+2?"),
		},
		MaxTokens: 64,
	})

	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "you are terse", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents, 3)
	assert.Equal(t, []string{"user", "model", "user"}, []string{
		req.Contents[0].Role, req.Contents[1].Role, req.Contents[2].Role,
	})
	require.NotNil(t, req.GenerationConfig)
	assert.Equal(t, int32(64), req.GenerationConfig.MaxOutputTokens)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"systemInstruction"`)
	assert.Contains(t, string(data), `"maxOutputTokens":64`)
	assert.NotContains(t, string(data), `"assistant"`)
}

func TestCreateChatCompletion(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-test", r.Header.Get("x-goog-api-key"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "4"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 1, "totalTokenCount": 6},
			"modelVersion": "gemini-2.5-flash",
			"responseId": "resp-1"
		}`)
	})

	resp, err := p.CreateChatCompletion(context.Background(), types.ChatCompletionRequest{
		Messages: []types.Message{types.NewMessage(types.RoleUser, "2+2?")},
	})
	require.NoError(t, err)

	choice, _ := resp.FirstChoice()
	assert.Equal(t, types.RoleAssistant, choice.Message.Role)
	assert.Equal(t, "4", choice.Message.Content)
	assert.Equal(t, "stop", choice.FinishReason)
	assert.Equal(t, 6, resp.Usage.TotalTokens)
	assert.Equal(t, "resp-1", resp.ID)
}

func TestCreateChatCompletion_FunctionCall(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": [
			{"functionCall": {"name": "get_weather", "args": {"city": "Oslo"}}}
		]}, "finishReason": "STOP"}]}`)
	})

	resp, err := p.CreateChatCompletion(context.Background(), types.ChatCompletionRequest{})
	require.NoError(t, err)

	choice, _ := resp.FirstChoice()
	assert.Equal(t, string(types.StopReasonToolCalls), choice.FinishReason)
	require.Len(t, choice.Message.ToolCalls, 1)
	assert.Equal(t, "Oslo", choice.Message.ToolCalls[0].Arguments["city"])
	assert.Equal(t, types.Usage{}, resp.Usage)
}

func TestCreateChatCompletion_Blocked(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"promptFeedback": {"blockReason": "SAFETY"}}`)
	})

	_, err := p.CreateChatCompletion(context.Background(), types.ChatCompletionRequest{})

	var pe *types.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, types.ErrorTypeParse, pe.Type)
	assert.Contains(t, pe.Message, "SAFETY")
}

func TestStreamChatCompletion(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"Hel\"}]}}],\"usageMetadata\":{\"promptTokenCount\":2}}\r\n\r\n")
		io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"lo\"}]},\"finishReason\":\"STOP\"}],\"usageMetadata\":{\"promptTokenCount\":2,\"candidatesTokenCount\":2,\"totalTokenCount\":4}}\r\n\r\n")
	})

	stream, err := p.StreamChatCompletion(context.Background(), types.ChatCompletionRequest{
		Messages: []types.Message{types.NewMessage(types.RoleUser, "hi")},
	})
	require.NoError(t, err)
	defer stream.Close()

	var text string
	var last types.StreamChunk
	for stream.Next() {
		last = stream.Current()
		text += last.Content
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, "Hello", text)
	assert.Equal(t, "stop", last.FinishReason)
	require.NotNil(t, last.Usage)
	assert.Equal(t, 4, last.Usage.TotalTokens)
}

func TestGetModels(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"models": [
			{"name": "models/gemini-2.5-flash", "displayName": "Gemini 2.5 Flash", "inputTokenLimit": 1048576, "outputTokenLimit": 65536, "supportedActions": ["generateContent", "countTokens"]},
			{"name": "models/text-embedding-004", "displayName": "Embedding", "inputTokenLimit": 2048, "supportedActions": ["embedContent"]}
		]}`)
	})

	models, err := p.GetModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "gemini-2.5-flash", models[0].ID)
	assert.Equal(t, 1048576, models[0].ContextWindow)
	assert.Equal(t, 65536, models[0].MaxOutputTokens)
	assert.NoError(t, models[0].Validate())
}
