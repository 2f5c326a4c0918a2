package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

const readBufferSize = 4096

// EventStream 拉取式 SSE 事件流，每个事件是一段合法 JSON
// 任意退出路径（EOF、错误、取消、提前 Close）都会关闭响应体
type EventStream struct {
	ctx      context.Context
	body     io.ReadCloser
	cancel   context.CancelFunc
	provider string
	logger   *logger.Logger

	decoder lineDecoder
	readBuf []byte
	pending []json.RawMessage
	event   json.RawMessage
	eof     bool
	err     error

	closeOnce sync.Once
	closed    atomic.Bool
}

func newEventStream(ctx context.Context, body io.ReadCloser, cancel context.CancelFunc, provider string, l *logger.Logger) *EventStream {
	return &EventStream{
		ctx:      ctx,
		body:     body,
		cancel:   cancel,
		provider: provider,
		logger:   l,
		readBuf:  make([]byte, readBufferSize),
	}
}

// NewEventStream 从任意 reader 构造事件流
func NewEventStream(ctx context.Context, body io.ReadCloser, provider string, l *logger.Logger) *EventStream {
	ctx, cancel := context.WithCancel(ctx)
	if l == nil {
		l = logger.L()
	}
	return newEventStream(ctx, body, cancel, provider, l)
}

// Next 读取下一个事件
func (s *EventStream) Next() bool {
	for {
		if s.closed.Load() {
			return false
		}
		if len(s.pending) > 0 {
			s.event = s.pending[0]
			s.pending = s.pending[1:]
			return true
		}
		if s.eof || s.err != nil {
			s.Close()
			return false
		}

		n, err := s.body.Read(s.readBuf)
		if n > 0 {
			for _, line := range s.decoder.Feed(s.readBuf[:n]) {
				s.enqueue(line)
			}
		}
		if err == nil {
			continue
		}

		if errors.Is(err, io.EOF) {
			if rest := s.decoder.Flush(); len(rest) > 0 {
				s.enqueue(rest)
			}
			s.eof = true
			continue
		}
		if s.closed.Load() {
			continue
		}
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			s.err = types.NewCanceledError(s.provider, ctxErr)
		} else {
			s.err = types.NewTransportError(s.provider, "read stream", err)
		}
	}
}

func (s *EventStream) enqueue(line []byte) {
	payload, ok := parsePayload(line)
	if !ok {
		return
	}
	if !json.Valid(payload) {
		s.logger.Warn("skip unparseable SSE line",
			zap.ByteString("line", payload),
		)
		return
	}
	s.pending = append(s.pending, json.RawMessage(payload))
}

// Event 当前事件
func (s *EventStream) Event() json.RawMessage {
	return s.event
}

// Err 流结束后的错误，正常结束或主动 Close 时为 nil
func (s *EventStream) Err() error {
	return s.err
}

// Close 释放连接，可重复调用
func (s *EventStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		err = s.body.Close()
	})
	return err
}

// DecodeFunc 把一个服务商事件转换为统一的增量
// emit 为 false 表示该事件不产生内容（如 message_start、ping），直接跳过
type DecodeFunc func(event json.RawMessage) (chunk types.StreamChunk, emit bool, err error)

// ChunkStream 在事件流之上按服务商格式解码，实现 types.ChunkStream
type ChunkStream struct {
	events  *EventStream
	decode  DecodeFunc
	current types.StreamChunk
	err     error
}

// NewChunkStream 创建解码流
func NewChunkStream(events *EventStream, decode DecodeFunc) *ChunkStream {
	return &ChunkStream{events: events, decode: decode}
}

func (s *ChunkStream) Next() bool {
	if s.err != nil {
		return false
	}
	for s.events.Next() {
		chunk, emit, err := s.decode(s.events.Event())
		if err != nil {
			s.err = err
			s.events.Close()
			return false
		}
		if !emit {
			continue
		}
		s.current = chunk
		return true
	}
	s.err = s.events.Err()
	return false
}

func (s *ChunkStream) Current() types.StreamChunk {
	return s.current
}

func (s *ChunkStream) Err() error {
	return s.err
}

func (s *ChunkStream) Close() error {
	return s.events.Close()
}
