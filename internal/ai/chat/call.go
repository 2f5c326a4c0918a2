package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

// State 调用状态
type State int

const (
	StateIdle State = iota
	StateInFlight
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in_flight"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Call 针对单个模型的一次调用
// idle → in_flight → completed | failed | cancelled，终态后不可再次执行
type Call struct {
	ID    string
	Model types.Model

	service *Service

	mu       sync.Mutex
	state    State
	err      error
	started  time.Time
	finished time.Time
}

// NewCall 创建调用
func (s *Service) NewCall(model types.Model) *Call {
	return &Call{
		ID:      uuid.NewString(),
		Model:   model,
		service: s,
	}
}

// State 当前状态
func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err 失败或取消的原因
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Duration 调用耗时，未结束时返回已进行的时间
func (c *Call) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.started.IsZero():
		return 0
	case c.finished.IsZero():
		return time.Since(c.started)
	}
	return c.finished.Sub(c.started)
}

// Do 执行阻塞调用，返回带元信息的助手消息
func (c *Call) Do(ctx context.Context, messages []types.Message, opts Options) (*types.Message, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}

	ctx = logger.WithCallID(ctx, c.ID)
	msg, err := c.service.complete(ctx, messages, c.Model, opts)
	err = c.canceledIfDone(ctx, err)
	c.finish(err)

	if err != nil {
		return nil, err
	}
	msg.Metadata.ProcessingTime = c.Duration()
	return msg, nil
}

// Stream 执行流式调用，返回的流结束时调用进入终态
// 未读完就 Close 视为取消
func (c *Call) Stream(ctx context.Context, messages []types.Message, opts Options) (types.ChunkStream, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}

	ctx = logger.WithCallID(ctx, c.ID)
	stream, err := c.service.openStream(ctx, messages, c.Model, opts)
	if err != nil {
		err = c.canceledIfDone(ctx, err)
		c.finish(err)
		return nil, err
	}
	return &callStream{ChunkStream: stream, call: c, ctx: ctx}, nil
}

// canceledIfDone 取消优先于其他失败原因
func (c *Call) canceledIfDone(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil && !types.IsCanceled(err) {
		return types.NewCanceledError(c.Model.Provider, ctx.Err())
	}
	return err
}

type callStream struct {
	types.ChunkStream
	call *Call
	ctx  context.Context

	done bool
	err  error
}

func (s *callStream) Next() bool {
	if s.done {
		return false
	}
	if s.ChunkStream.Next() {
		return true
	}
	s.done = true
	s.err = s.call.canceledIfDone(s.ctx, s.ChunkStream.Err())
	s.call.finish(s.err)
	return false
}

func (s *callStream) Err() error {
	if s.done {
		return s.err
	}
	return s.ChunkStream.Err()
}

func (s *callStream) Close() error {
	err := s.ChunkStream.Close()
	if !s.done {
		s.done = true
		s.err = types.NewCanceledError(s.call.Model.Provider, context.Canceled)
		s.call.finish(s.err)
	}
	return err
}

func (c *Call) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return fmt.Errorf("%w: call %s is %s", types.ErrCallReused, c.ID, c.state)
	}
	c.state = StateInFlight
	c.started = time.Now()
	return nil
}

func (c *Call) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInFlight {
		return
	}
	c.finished = time.Now()
	c.err = err
	switch {
	case err == nil:
		c.state = StateCompleted
	case types.IsCanceled(err):
		c.state = StateCancelled
	default:
		c.state = StateFailed
	}
	c.service.logger.Debug("call finished",
		zap.String("call_id", c.ID),
		zap.String("provider", c.Model.Provider),
		zap.String("model", c.Model.ID),
		zap.Stringer("state", c.state),
		zap.Duration("elapsed", c.finished.Sub(c.started)),
	)
}
