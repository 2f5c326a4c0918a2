package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		status int
	}{
		{"config", types.NewConfigError("openai", "missing key", types.ErrMissingAPIKey), ErrChatConfiguration, http.StatusBadRequest},
		{"canceled", types.NewCanceledError("openai", context.Canceled), ErrChatCanceled, StatusClientClosedRequest},
		{"rate limit", types.NewHTTPError("openai", 429, "", "slow down"), ErrChatRateLimited, http.StatusTooManyRequests},
		{"auth", types.NewHTTPError("anthropic", 401, "", "bad key"), ErrChatUpstreamAuth, http.StatusBadGateway},
		{"bad request", types.NewHTTPError("google", 400, "", "bad"), ErrChatInvalidRequest, http.StatusBadRequest},
		{"overloaded", types.NewHTTPError("anthropic", 529, "", "busy"), ErrChatOverloaded, http.StatusServiceUnavailable},
		{"server", types.NewHTTPError("cohere", 500, "", "boom"), ErrChatUpstream, http.StatusBadGateway},
		{"parse", types.NewParseError("mistral", "bad json", nil), ErrChatBadResponse, http.StatusBadGateway},
		{"wrapped", fmt.Errorf("chat: %w", types.NewTransportError("openai", "reset", nil)), ErrChatUpstream, http.StatusBadGateway},
		{"conversation", fmt.Errorf("load: %w", conversation.ErrNotFound), ErrConversationNotFound, http.StatusNotFound},
		{"app", NewValidationError("model"), ErrInvalidParams, http.StatusBadRequest},
		{"plain", fmt.Errorf("boom"), ErrInternalServer, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := ExtractCode(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, GetHTTPStatus(code))
		})
	}
}

func TestAppError(t *testing.T) {
	err := Wrap(fmt.Errorf("inner"), ErrBadRequest)
	assert.Equal(t, "[1007] Bad request: inner", err.Error())
	assert.Equal(t, "inner", GetDetails(err))
	assert.Same(t, err, Wrap(err, ErrInternalServer))
	assert.Nil(t, Wrap(nil, ErrInternalServer))

	assert.Equal(t, "Invalid parameters: x", FormatError(ErrInvalidParams, "x"))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(424242))
}
