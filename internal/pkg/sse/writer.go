package sse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrClosed 连接已关闭
var ErrClosed = errors.New("sse stream closed")

// Writer 单个请求的 SSE 输出，Send 与心跳可并发调用
type Writer struct {
	c      *gin.Context
	id     string
	mu     sync.Mutex
	closed bool
}

// NewWriter 写入 SSE 响应头并发送 connected 事件
func NewWriter(c *gin.Context) (*Writer, error) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	w := &Writer{c: c, id: uuid.NewString()}
	if err := w.Send(EventConnected, map[string]string{"client_id": w.id}); err != nil {
		return nil, err
	}
	return w, nil
}

// ID 客户端 ID
func (w *Writer) ID() string {
	return w.id
}

// Send 发送事件并立即刷新
func (w *Writer) Send(eventType string, data any) error {
	return w.write(Event{Type: eventType, Data: data}.FormatSSE())
}

// Heartbeat 发送注释行保持连接
func (w *Writer) Heartbeat() error {
	return w.write(": heartbeat\n\n")
}

// KeepAlive 按间隔发送心跳直到 ctx 结束或写入失败，interval <= 0 时不启动
func (w *Writer) KeepAlive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.Heartbeat(); err != nil {
					return
				}
			}
		}
	}()
}

// Close 之后的写入都返回 ErrClosed
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

func (w *Writer) write(payload string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if _, err := fmt.Fprint(w.c.Writer, payload); err != nil {
		w.closed = true
		return err
	}
	w.c.Writer.Flush()
	return nil
}
