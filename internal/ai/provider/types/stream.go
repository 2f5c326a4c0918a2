package types

import "io"

// ChunkStream 拉取式的流式响应
//
//	for stream.Next() {
//	    chunk := stream.Current()
//	}
//	if err := stream.Err(); err != nil { ... }
//
// 调用方不再消费时必须 Close，底层连接随之释放
type ChunkStream interface {
	Next() bool
	Current() StreamChunk
	Err() error
	io.Closer
}

// StaticStream 由固定块组成的流
type StaticStream struct {
	chunks []StreamChunk
	pos    int
	err    error
	closed bool
}

// NewStaticStream 创建固定内容的流，err 在所有块产出后返回
func NewStaticStream(chunks []StreamChunk, err error) *StaticStream {
	return &StaticStream{chunks: chunks, pos: -1, err: err}
}

func (s *StaticStream) Next() bool {
	if s.closed {
		return false
	}
	if s.pos+1 >= len(s.chunks) {
		s.pos = len(s.chunks)
		return false
	}
	s.pos++
	return true
}

func (s *StaticStream) Current() StreamChunk {
	if s.pos < 0 || s.pos >= len(s.chunks) {
		return StreamChunk{}
	}
	return s.chunks[s.pos]
}

func (s *StaticStream) Err() error {
	if s.pos >= len(s.chunks) {
		return s.err
	}
	return nil
}

func (s *StaticStream) Close() error {
	s.closed = true
	return nil
}

// Closed 是否已关闭
func (s *StaticStream) Closed() bool {
	return s.closed
}
