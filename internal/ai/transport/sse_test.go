package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

// chunkReader 按给定切分逐块返回数据
type chunkReader struct {
	chunks []string
	closed bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

func collect(t *testing.T, es *EventStream) []string {
	t.Helper()
	var out []string
	for es.Next() {
		out = append(out, string(es.Event()))
	}
	require.NoError(t, es.Err())
	return out
}

func TestLineDecoder(t *testing.T) {
	var d lineDecoder

	assert.Empty(t, d.Feed([]byte("data: {\"a\"")))
	lines := d.Feed([]byte(":1}\ndata: {\"b\":2}\nda"))
	require.Len(t, lines, 2)
	assert.Equal(t, `data: {"a":1}`, string(lines[0]))
	assert.Equal(t, `data: {"b":2}`, string(lines[1]))
	assert.Equal(t, "da", string(d.Flush()))
	assert.Nil(t, d.Flush())
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{`data: {"x":1}`, `{"x":1}`, true},
		{`data:{"x":1}`, `{"x":1}`, true},
		{`   data: {"x":1}   `, `{"x":1}`, true},
		{`{"x":1}`, `{"x":1}`, true},
		{`data: [DONE]`, "", false},
		{``, "", false},
		{`   `, "", false},
		{`event: content_block_delta`, "", false},
		{`: keep-alive`, "", false},
		{`id: 42`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parsePayload([]byte(tt.line))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestEventStream_HiThenDone(t *testing.T) {
	body := &chunkReader{chunks: []string{"data: {\"content\":\"Hi\"}\n\n", "data: [DONE]\n\n"}}
	es := NewEventStream(context.Background(), body, "test", logger.Nop())

	assert.Equal(t, []string{`{"content":"Hi"}`}, collect(t, es))
	assert.True(t, body.closed)
}

func TestEventStream_SplitAcrossChunks(t *testing.T) {
	body := &chunkReader{chunks: []string{"da", "ta: {\"n\":", "1}\r\n\r\nevent: x\ndata: {\"n\":2}\n", "data: {\"n\":3}"}}
	es := NewEventStream(context.Background(), body, "test", logger.Nop())

	// 最后一行没有换行，EOF 时再解析一次
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, collect(t, es))
}

func TestEventStream_SkipsBadLine(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	body := &chunkReader{chunks: []string{"data: {\"n\":1}\ndata: {broken\ndata: {\"n\":2}\n"}}
	es := NewEventStream(context.Background(), body, "test", logger.NewFromZap(zap.New(core)))

	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`}, collect(t, es))
	assert.Equal(t, 1, logs.FilterMessage("skip unparseable SSE line").Len())
}

func TestEventStream_CloseEarly(t *testing.T) {
	body := &chunkReader{chunks: []string{"data: {\"n\":1}\ndata: {\"n\":2}\n"}}
	es := NewEventStream(context.Background(), body, "test", logger.Nop())

	require.True(t, es.Next())
	require.NoError(t, es.Close())
	assert.True(t, body.closed)
	assert.False(t, es.Next())
	assert.NoError(t, es.Err())
	assert.NoError(t, es.Close())
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }
func (r failingReader) Close() error             { return nil }

func TestEventStream_ReadError(t *testing.T) {
	es := NewEventStream(context.Background(), failingReader{err: errors.New("connection reset")}, "test", logger.Nop())

	assert.False(t, es.Next())
	var pe *types.ProviderError
	require.True(t, errors.As(es.Err(), &pe))
	assert.Equal(t, types.ErrorTypeTransport, pe.Type)
}

func TestChunkStream(t *testing.T) {
	body := &chunkReader{chunks: []string{
		"data: {\"type\":\"start\"}\n",
		"data: {\"type\":\"delta\",\"text\":\"Hel\"}\n",
		"data: {\"type\":\"delta\",\"text\":\"lo\"}\n",
	}}
	es := NewEventStream(context.Background(), body, "test", logger.Nop())

	decode := func(event json.RawMessage) (types.StreamChunk, bool, error) {
		var e struct{ Type, Text string }
		if err := json.Unmarshal(event, &e); err != nil {
			return types.StreamChunk{}, false, err
		}
		if e.Type != "delta" {
			return types.StreamChunk{}, false, nil
		}
		return types.StreamChunk{Content: e.Text}, true, nil
	}

	var stream types.ChunkStream = NewChunkStream(es, decode)
	var sb strings.Builder
	for stream.Next() {
		sb.WriteString(stream.Current().Content)
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, "Hello", sb.String())
	assert.True(t, body.closed)
}

func TestChunkStream_DecodeError(t *testing.T) {
	body := &chunkReader{chunks: []string{"data: {\"type\":\"error\"}\ndata: {\"type\":\"delta\"}\n"}}
	es := NewEventStream(context.Background(), body, "test", logger.Nop())
	boom := types.NewHTTPError("test", 529, "overloaded_error", "Overloaded")

	stream := NewChunkStream(es, func(json.RawMessage) (types.StreamChunk, bool, error) {
		return types.StreamChunk{}, false, boom
	})

	assert.False(t, stream.Next())
	assert.Equal(t, boom, stream.Err())
	assert.True(t, body.closed)
}
