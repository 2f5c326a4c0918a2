package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid 判断角色是否合法
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Source 回答引用的来源
type Source struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Metadata 助手消息的调用信息，仅在调用结束后附加
type Metadata struct {
	Model          string        `json:"model,omitempty"`
	Provider       string        `json:"provider,omitempty"`
	ToolCalls      []ToolCall    `json:"tool_calls,omitempty"`
	ProcessingTime time.Duration `json:"processing_time,omitempty"`
	FinishReason   string        `json:"finish_reason,omitempty"`
	Error          bool          `json:"error,omitempty"`
	Sources        []Source      `json:"sources,omitempty"`
}

// Message 会话中的一条消息
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Edited    bool       `json:"edited,omitempty"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`

	// Tokens 已知的 token 数，0 表示未知
	Tokens int `json:"tokens,omitempty"`

	Usage    *Usage    `json:"usage,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// NewMessage 创建消息，ID 与时间戳在此确定
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Edit 修改消息内容
func (m *Message) Edit(content string) {
	now := time.Now()
	m.Content = content
	m.Edited = true
	m.EditedAt = &now
}

// IsSystem 是否为系统消息
func (m *Message) IsSystem() bool {
	return m.Role == RoleSystem
}

// JoinSystem 合并所有系统消息内容，供需要单独 system 字段的服务商使用
func JoinSystem(messages []Message) (system string, rest []Message) {
	var parts []string
	rest = make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if msg.Content != "" {
				parts = append(parts, msg.Content)
			}
			continue
		}
		rest = append(rest, msg)
	}
	return strings.Join(parts, "\n\n"), rest
}
