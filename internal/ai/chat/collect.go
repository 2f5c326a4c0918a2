package chat

import (
	"sort"
	"strings"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// Collector 逐块累积流式响应
type Collector struct {
	id           string
	content      strings.Builder
	tools        map[int]*toolCallBuilder
	function     *toolCallBuilder
	finishReason string
	usage        *types.Usage
	chunks       int
}

type toolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

// Add 追加一个响应块
func (c *Collector) Add(chunk types.StreamChunk) {
	c.chunks++
	if chunk.ID != "" && c.id == "" {
		c.id = chunk.ID
	}
	c.content.WriteString(chunk.Content)

	for _, delta := range chunk.ToolCalls {
		if c.tools == nil {
			c.tools = make(map[int]*toolCallBuilder)
		}
		b, ok := c.tools[delta.Index]
		if !ok {
			b = &toolCallBuilder{}
			c.tools[delta.Index] = b
		}
		if delta.ID != "" {
			b.id = delta.ID
		}
		if delta.Name != "" {
			b.name = delta.Name
		}
		b.args.WriteString(delta.Arguments)
	}

	if fc := chunk.FunctionCall; fc != nil {
		if c.function == nil {
			c.function = &toolCallBuilder{}
		}
		if fc.Name != "" {
			c.function.name = fc.Name
		}
		c.function.args.WriteString(fc.Arguments)
	}

	if chunk.FinishReason != "" {
		c.finishReason = chunk.FinishReason
	}
	if chunk.Usage != nil {
		u := *chunk.Usage
		c.usage = &u
	}
}

// Content 已累积的文本
func (c *Collector) Content() string {
	return c.content.String()
}

// Chunks 已接收的块数
func (c *Collector) Chunks() int {
	return c.chunks
}

// Message 生成助手消息，工具调用参数在此解析
func (c *Collector) Message() *types.Message {
	msg := types.NewMessage(types.RoleAssistant, c.content.String())
	msg.Metadata = &types.Metadata{
		ToolCalls:    c.toolCalls(),
		FinishReason: c.finishReason,
	}
	if c.usage != nil {
		u := *c.usage
		msg.Usage = &u
		msg.Tokens = u.CompletionTokens
	}
	return &msg
}

func (c *Collector) toolCalls() []types.ToolCall {
	var calls []types.ToolCall
	indexes := make([]int, 0, len(c.tools))
	for i := range c.tools {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for _, i := range indexes {
		b := c.tools[i]
		calls = append(calls, types.ParseToolCall(b.id, b.name, b.args.String()))
	}
	if c.function != nil {
		calls = append(calls, types.ParseToolCall("", c.function.name, c.function.args.String()))
	}
	return calls
}

// Collect 读完整个流并聚合为一条助手消息，结束后关闭流
// 流中途出错时返回已收到的部分内容与错误
func Collect(stream types.ChunkStream) (*types.Message, error) {
	defer stream.Close()

	var c Collector
	for stream.Next() {
		c.Add(stream.Current())
	}
	msg := c.Message()
	if err := stream.Err(); err != nil {
		return msg, err
	}
	return msg, nil
}
