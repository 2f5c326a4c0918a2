package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

func noBackoff(int) time.Duration { return 0 }

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBackoff(noBackoff), WithLogger(logger.Nop())}, opts...)
	c, err := New("test", types.Config{APIKey: "sk-test", BaseURL: url}, map[string]string{
		"Authorization": "Bearer sk-test",
	}, opts...)
	require.NoError(t, err)
	return c
}

func TestDefaultBackoff(t *testing.T) {
	for attempt := 0; attempt < 6; attempt++ {
		d := DefaultBackoff(attempt)
		base := time.Duration(1000*(1<<attempt)) * time.Millisecond
		assert.GreaterOrEqual(t, d, min(base, 10*time.Second), "attempt %d", attempt)
		assert.LessOrEqual(t, d, 10*time.Second, "attempt %d", attempt)
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("openai", types.Config{BaseURL: "http://localhost"}, nil)
	require.Error(t, err)
	assert.True(t, types.IsConfiguration(err))
	assert.True(t, errors.Is(err, types.ErrMissingAPIKey))
}

func TestRequest_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	var out struct{ OK bool }
	err := c.Request(context.Background(), "/chat", RequestOptions{Body: map[string]string{"a": "b"}}, &out)

	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRequest_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom","code":"server_error"}}`)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).Request(context.Background(), "/chat", RequestOptions{}, nil)

	var pe *types.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
	assert.Equal(t, "boom", pe.Message)
	assert.Equal(t, "server_error", pe.Code)
	assert.Equal(t, int32(types.DefaultMaxAttempts), calls.Load())
}

func TestRequest_ClientErrorsFailFast(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusTooManyRequests} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
			}))
			defer srv.Close()

			err := newTestClient(t, srv.URL).Request(context.Background(), "/chat", RequestOptions{}, nil)

			var pe *types.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, status, pe.StatusCode)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestRequest_HTMLIsTransportError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>502 Bad Gateway</body></html>")
	}))
	defer srv.Close()

	var out map[string]any
	err := newTestClient(t, srv.URL).Request(context.Background(), "/chat", RequestOptions{}, &out)

	var pe *types.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, types.ErrorTypeTransport, pe.Type)
	assert.Nil(t, out)
	assert.Equal(t, int32(types.DefaultMaxAttempts), calls.Load())
}

func TestRequest_CancelDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithBackoff(func(int) time.Duration { return time.Hour }))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	err := c.Request(ctx, "/chat", RequestOptions{}, nil)

	require.Error(t, err)
	assert.True(t, types.IsCanceled(err))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), calls.Load())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRequest_TimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.Request(context.Background(), "/chat", RequestOptions{Timeout: 100 * time.Millisecond}, nil)

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRequest_Headers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "call", r.Header.Get("X-Extra"))
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/v1/", WithHeader("X-Extra", "default"))
	err := c.Request(context.Background(), "models", RequestOptions{Headers: map[string]string{"X-Extra": "call"}}, nil)
	require.NoError(t, err)
}

func TestRequest_ParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [`)
	}))
	defer srv.Close()

	var out map[string]any
	err := newTestClient(t, srv.URL).Request(context.Background(), "/chat", RequestOptions{}, &out)

	var pe *types.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, types.ErrorTypeParse, pe.Type)
}

func TestStreamRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		io.WriteString(w, "data: {\"content\":\"Hi\"}\n\n")
		flusher.Flush()
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	es, err := newTestClient(t, srv.URL).StreamRequest(context.Background(), "/chat", RequestOptions{Body: map[string]bool{"stream": true}})
	require.NoError(t, err)
	defer es.Close()

	var events []string
	for es.Next() {
		events = append(events, string(es.Event()))
	}
	require.NoError(t, es.Err())
	assert.Equal(t, []string{`{"content":"Hi"}`}, events)
}

func TestStreamRequest_RetriesConnect(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"n\":1}\n")
	}))
	defer srv.Close()

	es, err := newTestClient(t, srv.URL).StreamRequest(context.Background(), "/chat", RequestOptions{})
	require.NoError(t, err)
	defer es.Close()

	require.True(t, es.Next())
	assert.JSONEq(t, `{"n":1}`, string(es.Event()))
	assert.False(t, es.Next())
	assert.Equal(t, int32(2), calls.Load())
}

func TestStreamRequest_CancelMidStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"n\":1}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	es, err := newTestClient(t, srv.URL).StreamRequest(ctx, "/chat", RequestOptions{})
	require.NoError(t, err)

	require.True(t, es.Next())
	cancel()
	assert.False(t, es.Next())
	assert.True(t, types.IsCanceled(es.Err()))
}

func TestExtractError(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    string
		wantMessage string
	}{
		{"openai", `{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`, "invalid_api_key", "bad key"},
		{"anthropic", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, "overloaded_error", "Overloaded"},
		{"google", `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`, "400", "API key not valid"},
		{"cohere", `{"message":"invalid api token"}`, "", "invalid api token"},
		{"plain", `upstream connect error`, "", "upstream connect error"},
		{"empty", ``, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := extractError([]byte(tt.body))
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMessage, msg)
		})
	}
}

func TestIsHTML(t *testing.T) {
	assert.True(t, isHTML("text/html"))
	assert.True(t, isHTML("text/html; charset=utf-8"))
	assert.False(t, isHTML("application/json"))
	assert.False(t, isHTML(""))
}
