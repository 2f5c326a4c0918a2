// Package providertest provides an in-memory adapter for tests.
package providertest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// Stub 可编程的内存适配器
type Stub struct {
	ID string

	// 同步调用钩子，为空时返回 Response / Err
	OnChat func(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error)
	// 流式调用钩子，为空时返回 Chunks 组成的静态流
	OnStream func(ctx context.Context, req types.ChatCompletionRequest) (types.ChunkStream, error)

	Response *types.ChatCompletionResponse
	Chunks   []types.StreamChunk
	Err      error
	Catalog  []types.Model

	ChatCalls   atomic.Int32
	StreamCalls atomic.Int32
	ModelCalls  atomic.Int32
	Closed      atomic.Bool

	mu       sync.Mutex
	requests []types.ChatCompletionRequest
}

// NewStub 创建返回固定文本的适配器
func NewStub(id, content string, usage types.Usage) *Stub {
	return &Stub{
		ID: id,
		Response: &types.ChatCompletionResponse{
			ID: "stub-" + id,
			Choices: []types.Choice{{
				Message:      types.ChoiceMessage{Role: types.RoleAssistant, Content: content},
				FinishReason: string(types.StopReasonStop),
			}},
			Usage: usage,
		},
	}
}

func (s *Stub) Name() string {
	return s.ID
}

func (s *Stub) CreateChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	s.ChatCalls.Add(1)
	s.record(req)
	if s.OnChat != nil {
		return s.OnChat(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, types.NewCanceledError(s.ID, err)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	resp := *s.Response
	resp.Model = req.Model
	return &resp, nil
}

func (s *Stub) StreamChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (types.ChunkStream, error) {
	s.StreamCalls.Add(1)
	s.record(req)
	if s.OnStream != nil {
		return s.OnStream(ctx, req)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return types.NewStaticStream(s.Chunks, nil), nil
}

func (s *Stub) GetModels(ctx context.Context) ([]types.Model, error) {
	s.ModelCalls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Catalog, nil
}

func (s *Stub) Close() error {
	s.Closed.Store(true)
	return nil
}

// Requests 返回收到的请求副本
func (s *Stub) Requests() []types.ChatCompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ChatCompletionRequest(nil), s.requests...)
}

// LastRequest 返回最近一次请求
func (s *Stub) LastRequest() (types.ChatCompletionRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return types.ChatCompletionRequest{}, false
	}
	return s.requests[len(s.requests)-1], true
}

func (s *Stub) record(req types.ChatCompletionRequest) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
}

var _ types.Adapter = (*Stub)(nil)
