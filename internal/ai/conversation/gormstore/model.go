package gormstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// ConversationModel 会话表
type ConversationModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Provider  string    `gorm:"size:32"`
	Model     string    `gorm:"size:128"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;index"`
}

// TableName 表名
func (ConversationModel) TableName() string {
	return "conversations"
}

// MessageModel 消息表，Seq 决定消息顺序
// Payload 保存完整消息 JSON，Role 与 Content 单独成列便于查询
type MessageModel struct {
	Seq            uint64    `gorm:"primaryKey;autoIncrement"`
	ConversationID string    `gorm:"size:64;not null;index:idx_messages_conversation_seq,priority:1"`
	MessageID      string    `gorm:"size:64;not null"`
	Role           string    `gorm:"size:16;not null"`
	Content        string    `gorm:"type:text"`
	Payload        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName 表名
func (MessageModel) TableName() string {
	return "conversation_messages"
}

func toMessageModel(conversationID string, msg types.Message) (*MessageModel, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	return &MessageModel{
		ConversationID: conversationID,
		MessageID:      msg.ID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		Payload:        string(payload),
	}, nil
}

func (m *MessageModel) toMessage() (types.Message, error) {
	var msg types.Message
	if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
		return types.Message{}, fmt.Errorf("decode message %s: %w", m.MessageID, err)
	}
	return msg, nil
}

func (m *ConversationModel) toConversation(messages []types.Message) *conversation.Conversation {
	return &conversation.Conversation{
		ID:        m.ID,
		Provider:  m.Provider,
		Model:     m.Model,
		Messages:  messages,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
