package sse

import "encoding/json"

// 事件类型
const (
	EventConnected = "connected"
	EventChunk     = "chunk"
	EventDone      = "done"
	EventError     = "error"
)

// Event SSE 事件
type Event struct {
	Type string `json:"type"` // 事件类型
	Data any    `json:"data"` // 事件数据
}

// FormatSSE 格式化为 SSE 消息格式
func (e Event) FormatSSE() string {
	data, _ := json.Marshal(e.Data)
	return "event: " + e.Type + "\ndata: " + string(data) + "\n\n"
}
