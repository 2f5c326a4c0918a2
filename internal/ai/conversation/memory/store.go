package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// Store 进程内会话存储
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*conversation.Conversation
	now           func() time.Time
}

// New 创建内存存储
func New() *Store {
	return &Store{
		conversations: make(map[string]*conversation.Conversation),
		now:           time.Now,
	}
}

func (s *Store) Create(ctx context.Context, conv *conversation.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ID]; ok {
		return fmt.Errorf("conversation %s already exists", conv.ID)
	}
	c := clone(conv)
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.conversations[conv.ID] = c
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return clone(c), nil
}

func (s *Store) Append(ctx context.Context, id string, msg types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.conversations[id]
	if !ok {
		c = &conversation.Conversation{ID: id, CreatedAt: now}
		s.conversations[id] = c
	}
	if msg.Metadata != nil {
		c.Provider = msg.Metadata.Provider
		c.Model = msg.Metadata.Model
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = now
	return nil
}

func (s *Store) History(ctx context.Context, id string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return []types.Message{}, nil
	}
	return append([]types.Message(nil), c.Messages...), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return conversation.ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

func clone(c *conversation.Conversation) *conversation.Conversation {
	out := *c
	out.Messages = append([]types.Message(nil), c.Messages...)
	return &out
}

var _ conversation.Store = (*Store)(nil)
