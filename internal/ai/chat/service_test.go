package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/contextwindow"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation/memory"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/providertest"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/registry"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/tools"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/workerpool"
)

func newTestService(t *testing.T, adapters []types.Adapter, opts ...Option) *Service {
	t.Helper()
	reg := registry.New(registry.WithLogger(logger.Nop()))
	for _, a := range adapters {
		reg.Register(a)
	}
	pool, err := workerpool.New(&workerpool.Config{Workers: 4}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Shutdown(time.Second) })

	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	return NewService(reg, contextwindow.NewManager(), pool, opts...)
}

func model(provider, id string) types.Model {
	return types.Model{ID: id, Provider: provider, Name: id, ContextWindow: 8192, MaxOutputTokens: 1024}
}

func TestChat_Basic(t *testing.T) {
	stub := providertest.NewStub("openai", "4", types.NewUsage(5, 1))
	s := newTestService(t, []types.Adapter{stub})

	msgs := []types.Message{types.NewMessage(types.RoleUser, "2+2?")}
	reply, err := s.Chat(context.Background(), msgs, model("openai", "gpt-4o"), Options{Temperature: types.Float32(0.2)})
	require.NoError(t, err)

	assert.Equal(t, types.RoleAssistant, reply.Role)
	assert.Equal(t, "4", reply.Content)
	assert.NotEmpty(t, reply.ID)
	require.NotNil(t, reply.Usage)
	assert.Equal(t, 6, reply.Usage.TotalTokens)
	assert.Equal(t, 1, reply.Tokens)

	require.NotNil(t, reply.Metadata)
	assert.Equal(t, "gpt-4o", reply.Metadata.Model)
	assert.Equal(t, "openai", reply.Metadata.Provider)
	assert.Equal(t, "stop", reply.Metadata.FinishReason)
	assert.False(t, reply.Metadata.Error)
	assert.Positive(t, reply.Metadata.ProcessingTime)

	req, ok := stub.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", req.Model)
	assert.False(t, req.Stream)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.2, *req.Temperature, 1e-6)
	require.Len(t, req.Messages, 1)
}

func TestChat_ProviderErrors(t *testing.T) {
	stub := providertest.NewStub("openai", "ok", types.Usage{})
	s := newTestService(t, []types.Adapter{stub})
	msgs := []types.Message{types.NewMessage(types.RoleUser, "hi")}

	_, err := s.Chat(context.Background(), msgs, model("cohere", "command-r"), Options{})
	require.Error(t, err)
	assert.True(t, types.IsConfiguration(err))
	assert.ErrorIs(t, err, types.ErrProviderNotRegistered)

	require.NoError(t, s.providers.SetStatus("openai", types.ProviderOffline))
	_, err = s.Chat(context.Background(), msgs, model("openai", "gpt-4o"), Options{})
	assert.True(t, types.IsConfiguration(err))
	assert.ErrorIs(t, err, types.ErrProviderOffline)
	assert.Zero(t, stub.ChatCalls.Load())
}

func TestChat_AdapterErrorPropagates(t *testing.T) {
	stub := providertest.NewStub("anthropic", "", types.Usage{})
	stub.Err = types.NewHTTPError("anthropic", 401, "", "invalid x-api-key")
	s := newTestService(t, []types.Adapter{stub})

	_, err := s.Chat(context.Background(), []types.Message{types.NewMessage(types.RoleUser, "hi")}, model("anthropic", "claude"), Options{})
	var pe *types.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, types.ErrorTypeAuthentication, pe.Type)
}

func TestChat_EmptyChoices(t *testing.T) {
	stub := providertest.NewStub("openai", "", types.Usage{})
	stub.Response.Choices = nil
	s := newTestService(t, []types.Adapter{stub})

	_, err := s.Chat(context.Background(), []types.Message{types.NewMessage(types.RoleUser, "hi")}, model("openai", "gpt-4o"), Options{})
	assert.ErrorIs(t, err, types.ErrEmptyResponse)
}

func TestChat_ToolCallsSurfacedNotExecuted(t *testing.T) {
	stub := providertest.NewStub("openai", "", types.NewUsage(10, 5))
	stub.Response.Choices[0].FinishReason = string(types.StopReasonToolCalls)
	stub.Response.Choices[0].Message.ToolCalls = []types.ToolCall{
		types.ParseToolCall("call_1", "get_weather", `{"city":"Paris"}`),
	}

	executed := false
	toolReg := tools.NewRegistry(logger.Nop())
	require.NoError(t, toolReg.Register(tools.Tool{
		Name:        "get_weather",
		Description: "current weather",
		Parameters:  map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			executed = true
			return "sunny", nil
		},
	}))
	s := newTestService(t, []types.Adapter{stub}, WithTools(toolReg))

	reply, err := s.Chat(context.Background(),
		[]types.Message{types.NewMessage(types.RoleUser, "weather in Paris?")},
		model("openai", "gpt-4o"),
		Options{ToolNames: []string{"get_weather"}},
	)
	require.NoError(t, err)
	require.Len(t, reply.Metadata.ToolCalls, 1)
	assert.Equal(t, "get_weather", reply.Metadata.ToolCalls[0].Name)
	assert.Equal(t, "Paris", reply.Metadata.ToolCalls[0].Arguments["city"])
	assert.Equal(t, "tool_calls", reply.Metadata.FinishReason)
	assert.False(t, executed)

	req, _ := stub.LastRequest()
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "get_weather", req.Tools[0].Name)

	_, err = s.Chat(context.Background(),
		[]types.Message{types.NewMessage(types.RoleUser, "hi")},
		model("openai", "gpt-4o"),
		Options{ToolNames: []string{"missing"}},
	)
	assert.ErrorIs(t, err, types.ErrToolNotRegistered)
}

func TestChat_ToolNamesWithoutRegistry(t *testing.T) {
	stub := providertest.NewStub("openai", "ok", types.Usage{})
	s := newTestService(t, []types.Adapter{stub})

	_, err := s.Chat(context.Background(), []types.Message{types.NewMessage(types.RoleUser, "hi")}, model("openai", "gpt-4o"), Options{ToolNames: []string{"x"}})
	assert.True(t, types.IsConfiguration(err))
	assert.Zero(t, stub.ChatCalls.Load())
}

func TestChat_ContextTrimming(t *testing.T) {
	stub := providertest.NewStub("openai", "ok", types.Usage{})
	s := newTestService(t, []types.Adapter{stub})

	history := []types.Message{types.NewMessage(types.RoleSystem, "be brief")}
	for i := 0; i < 20; i++ {
		history = append(history, types.NewMessage(types.RoleUser, strings.Repeat("x", 400)))
	}
	small := types.Model{ID: "tiny", Provider: "openai", ContextWindow: 1000}

	_, err := s.Chat(context.Background(), history, small, Options{ReserveTokens: 400})
	require.NoError(t, err)

	req, _ := stub.LastRequest()
	// 预算 600，每条 100 tokens，system 占 2
	assert.Len(t, req.Messages, 6)
	assert.Equal(t, types.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, history[len(history)-1].ID, req.Messages[len(req.Messages)-1].ID)

	_, err = s.Chat(context.Background(), history, model("openai", "gpt-4o"), Options{MaxMessages: 3})
	require.NoError(t, err)
	req, _ = stub.LastRequest()
	assert.Len(t, req.Messages, 4)
	assert.Len(t, history, 21, "caller history is not modified")
}

func TestChat_Cancel(t *testing.T) {
	started := make(chan struct{})
	stub := providertest.NewStub("openai", "", types.Usage{})
	stub.OnChat = func(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
		close(started)
		<-ctx.Done()
		return nil, types.NewCanceledError("openai", ctx.Err())
	}
	s := newTestService(t, []types.Adapter{stub})

	ctx, cancel := context.WithCancel(context.Background())
	call := s.NewCall(model("openai", "gpt-4o"))
	assert.Equal(t, StateIdle, call.State())

	done := make(chan error, 1)
	go func() {
		_, err := call.Do(ctx, []types.Message{types.NewMessage(types.RoleUser, "hi")}, Options{})
		done <- err
	}()

	<-started
	assert.Equal(t, StateInFlight, call.State())
	cancel()

	err := <-done
	assert.ErrorIs(t, err, types.ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCancelled, call.State())
	assert.Equal(t, int32(1), stub.ChatCalls.Load())
}

func TestChat_CancelTakesPrecedence(t *testing.T) {
	stub := providertest.NewStub("openai", "", types.Usage{})
	stub.OnChat = func(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
		return nil, types.NewTransportError("openai", "connection reset", errors.New("EOF"))
	}
	s := newTestService(t, []types.Adapter{stub})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	call := s.NewCall(model("openai", "gpt-4o"))
	_, err := call.Do(ctx, []types.Message{types.NewMessage(types.RoleUser, "hi")}, Options{})
	assert.True(t, types.IsCanceled(err))
	assert.Equal(t, StateCancelled, call.State())
}

func TestCall_Transitions(t *testing.T) {
	stub := providertest.NewStub("openai", "ok", types.Usage{})
	s := newTestService(t, []types.Adapter{stub})
	msgs := []types.Message{types.NewMessage(types.RoleUser, "hi")}

	ok := s.NewCall(model("openai", "gpt-4o"))
	_, err := ok.Do(context.Background(), msgs, Options{})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, ok.State())
	assert.True(t, ok.State().Terminal())
	assert.Positive(t, ok.Duration())

	_, err = ok.Do(context.Background(), msgs, Options{})
	assert.ErrorIs(t, err, types.ErrCallReused)
	assert.Equal(t, StateCompleted, ok.State())

	failed := s.NewCall(model("mistral", "mistral-large"))
	_, err = failed.Do(context.Background(), msgs, Options{})
	require.Error(t, err)
	assert.Equal(t, StateFailed, failed.State())
	assert.Equal(t, err, failed.Err())

	_, err = failed.Do(context.Background(), msgs, Options{})
	assert.ErrorIs(t, err, types.ErrCallReused)

	assert.Equal(t, "in_flight", StateInFlight.String())
	assert.False(t, StateIdle.Terminal())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestChatStream_Unmodified(t *testing.T) {
	stub := providertest.NewStub("mistral", "", types.Usage{})
	stub.Chunks = []types.StreamChunk{{Content: "Bon"}, {Content: "jour", FinishReason: "stop"}}
	s := newTestService(t, []types.Adapter{stub})

	stream, err := s.ChatStream(context.Background(), []types.Message{types.NewMessage(types.RoleUser, "hello in french")}, model("mistral", "mistral-small"), Options{})
	require.NoError(t, err)
	defer stream.Close()

	var got []types.StreamChunk
	for stream.Next() {
		got = append(got, stream.Current())
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, stub.Chunks, got)

	req, _ := stub.LastRequest()
	assert.True(t, req.Stream)
}

func TestCallStream_Transitions(t *testing.T) {
	chunks := []types.StreamChunk{{Content: "a"}, {Content: "b", FinishReason: "stop"}}
	broken := types.NewTransportError("openai", "connection reset", errors.New("EOF"))
	msgs := []types.Message{types.NewMessage(types.RoleUser, "hi")}

	tests := []struct {
		name      string
		provider  string
		streamErr error
		cancel    bool
		closeAt   int
		wantState State
		wantOpen  bool
		wantRead  int
	}{
		{name: "drained", provider: "openai", wantState: StateCompleted, wantOpen: true, wantRead: 2, closeAt: -1},
		{name: "stream error", provider: "openai", streamErr: broken, wantState: StateFailed, wantOpen: true, wantRead: 2, closeAt: -1},
		{name: "closed early", provider: "openai", wantState: StateCancelled, wantOpen: true, wantRead: 1, closeAt: 1},
		{name: "context canceled", provider: "openai", streamErr: broken, cancel: true, wantState: StateCancelled, wantOpen: true, wantRead: 2, closeAt: -1},
		{name: "setup error", provider: "mistral", wantState: StateFailed, closeAt: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := providertest.NewStub("openai", "", types.Usage{})
			stub.OnStream = func(ctx context.Context, req types.ChatCompletionRequest) (types.ChunkStream, error) {
				return types.NewStaticStream(chunks, tt.streamErr), nil
			}
			s := newTestService(t, []types.Adapter{stub})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			call := s.NewCall(model(tt.provider, "m"))
			stream, err := call.Stream(ctx, msgs, Options{})
			if !tt.wantOpen {
				require.Error(t, err)
				assert.Nil(t, stream)
				assert.Equal(t, tt.wantState, call.State())
				assert.Equal(t, err, call.Err())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StateInFlight, call.State())

			read := 0
			for stream.Next() {
				read++
				assert.Equal(t, StateInFlight, call.State())
				if read == tt.closeAt {
					break
				}
			}
			require.NoError(t, stream.Close())
			assert.Equal(t, tt.wantRead, read)
			assert.Equal(t, tt.wantState, call.State())

			switch tt.wantState {
			case StateCompleted:
				assert.NoError(t, stream.Err())
				assert.NoError(t, call.Err())
			case StateFailed:
				assert.Equal(t, broken, stream.Err())
				assert.Equal(t, broken, call.Err())
			case StateCancelled:
				assert.True(t, types.IsCanceled(stream.Err()))
				assert.True(t, types.IsCanceled(call.Err()))
			}

			// 终态后 Next 保持 false，不重复结束
			assert.False(t, stream.Next())
			assert.Equal(t, tt.wantState, call.State())
		})
	}
}

func TestCallStream_Reuse(t *testing.T) {
	stub := providertest.NewStub("openai", "ok", types.Usage{})
	stub.Chunks = []types.StreamChunk{{Content: "ok"}}
	s := newTestService(t, []types.Adapter{stub})
	msgs := []types.Message{types.NewMessage(types.RoleUser, "hi")}

	call := s.NewCall(model("openai", "gpt-4o"))
	stream, err := call.Stream(context.Background(), msgs, Options{})
	require.NoError(t, err)

	// 流未结束时同一调用不可再执行
	_, err = call.Stream(context.Background(), msgs, Options{})
	assert.ErrorIs(t, err, types.ErrCallReused)
	_, err = call.Do(context.Background(), msgs, Options{})
	assert.ErrorIs(t, err, types.ErrCallReused)

	for stream.Next() {
	}
	require.NoError(t, stream.Close())
	assert.Equal(t, StateCompleted, call.State())

	_, err = call.Stream(context.Background(), msgs, Options{})
	assert.ErrorIs(t, err, types.ErrCallReused)
	assert.Equal(t, int32(1), stub.StreamCalls.Load())
}

func TestChat_StreamOptionCollects(t *testing.T) {
	stub := providertest.NewStub("google", "", types.Usage{})
	usage := types.NewUsage(3, 2)
	stub.Chunks = []types.StreamChunk{{Content: "Hel"}, {Content: "lo", FinishReason: "stop", Usage: &usage}}
	s := newTestService(t, []types.Adapter{stub})

	reply, err := s.Chat(context.Background(), []types.Message{types.NewMessage(types.RoleUser, "hi")}, model("google", "gemini-1.5-flash"), Options{Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "Hello", reply.Content)
	assert.Equal(t, "google", reply.Metadata.Provider)
	assert.Equal(t, "gemini-1.5-flash", reply.Metadata.Model)
	assert.Equal(t, 5, reply.Usage.TotalTokens)
	assert.Equal(t, int32(1), stub.StreamCalls.Load())
	assert.Zero(t, stub.ChatCalls.Load())
}

func TestChatConversation(t *testing.T) {
	stub := providertest.NewStub("openai", "4", types.NewUsage(5, 1))
	store := memory.New()
	s := newTestService(t, []types.Adapter{stub}, WithStore(store))
	ctx := context.Background()

	reply, err := s.ChatConversation(ctx, "conv-1", "2+2?", model("openai", "gpt-4o"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "4", reply.Content)

	_, err = s.ChatConversation(ctx, "conv-1", "and 3+3?", model("openai", "gpt-4o"), Options{})
	require.NoError(t, err)

	history, err := store.History(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "2+2?", history[0].Content)
	assert.Equal(t, "4", history[1].Content)
	assert.Equal(t, "and 3+3?", history[2].Content)

	req, _ := stub.LastRequest()
	assert.Len(t, req.Messages, 3)

	conv, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "openai", conv.Provider)
	assert.Equal(t, "gpt-4o", conv.Model)

	stub.Err = types.NewHTTPError("openai", 500, "", "boom")
	_, err = s.ChatConversation(ctx, "conv-1", "fail", model("openai", "gpt-4o"), Options{})
	require.Error(t, err)
	history, _ = store.History(ctx, "conv-1")
	assert.Len(t, history, 5, "user message kept after failure")
}

func TestChatConversation_NoStore(t *testing.T) {
	s := newTestService(t, nil)
	_, err := s.ChatConversation(context.Background(), "c", "hi", model("openai", "gpt-4o"), Options{})
	assert.True(t, types.IsConfiguration(err))
}

func TestChat_ConcurrentCallsIsolated(t *testing.T) {
	stub := providertest.NewStub("openai", "ok", types.Usage{})
	s := newTestService(t, []types.Adapter{stub})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Chat(context.Background(), []types.Message{types.NewMessage(types.RoleUser, "hi")}, model("openai", "gpt-4o"), Options{Stop: []string{"\n"}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(10), stub.ChatCalls.Load())
}

func TestResolveModel(t *testing.T) {
	stub := providertest.NewStub("anthropic", "ok", types.Usage{})
	stub.Catalog = []types.Model{{ID: "claude-3-5-sonnet", Provider: "anthropic", ContextWindow: 200000}}
	s := newTestService(t, []types.Adapter{stub})
	ctx := context.Background()

	m, err := s.ResolveModel(ctx, "claude", "claude-3-5-sonnet")
	require.NoError(t, err)
	assert.Equal(t, 200000, m.ContextWindow)

	m, err = s.ResolveModel(ctx, "anthropic", "claude-next")
	require.NoError(t, err)
	assert.Equal(t, FallbackContextWindow, m.ContextWindow)
	assert.Equal(t, "anthropic", m.Provider)

	_, err = s.ResolveModel(ctx, "cohere", "command-r")
	assert.True(t, types.IsConfiguration(err))
}
