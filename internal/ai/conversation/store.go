package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// ErrNotFound 会话不存在
var ErrNotFound = errors.New("conversation not found")

// Conversation 持久化的会话
type Conversation struct {
	ID        string          `json:"id"`
	Provider  string          `json:"provider,omitempty"`
	Model     string          `json:"model,omitempty"`
	Messages  []types.Message `json:"messages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store 会话存储，对话核心只通过 Append / History 访问
type Store interface {
	// Create 创建会话，ID 已存在时返回错误
	Create(ctx context.Context, conv *Conversation) error

	// Get 获取会话及全部消息
	Get(ctx context.Context, id string) (*Conversation, error)

	// Append 追加一条消息，会话不存在时自动创建
	Append(ctx context.Context, id string, msg types.Message) error

	// History 按插入顺序返回消息，会话不存在时返回空列表
	History(ctx context.Context, id string) ([]types.Message, error)

	// Delete 删除会话
	Delete(ctx context.Context, id string) error
}
