package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	rdb "github.com/lk2023060901/ai-chat-dashboard/internal/pkg/redis"
)

const (
	fieldProvider  = "provider"
	fieldModel     = "model"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// Store 基于 Redis 的会话存储
// 元信息存放在 hash <prefix>:conv:<id>，消息以 JSON 形式 RPUSH 到 <prefix>:conv:<id>:messages
type Store struct {
	client *rdb.Client
	ttl    time.Duration
}

// Option 存储选项
type Option func(*Store)

// WithTTL 设置会话过期时间，每次写入都会续期，0 表示永不过期
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// New 创建 Redis 存储
func New(client *rdb.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) metaKey(id string) string {
	return s.client.Key("conv", id)
}

func (s *Store) messagesKey(id string) string {
	return s.client.Key("conv", id, "messages")
}

func (s *Store) Create(ctx context.Context, conv *conversation.Conversation) error {
	now := time.Now()
	created := conv.CreatedAt
	if created.IsZero() {
		created = now
	}

	ok, err := s.client.HSetNX(ctx, s.metaKey(conv.ID), fieldCreatedAt, formatTime(created)).Result()
	if err != nil {
		return fmt.Errorf("create conversation %s: %w", conv.ID, err)
	}
	if !ok {
		return fmt.Errorf("conversation %s already exists", conv.ID)
	}

	payloads, err := encodeMessages(conv.Messages)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.metaKey(conv.ID),
			fieldProvider, conv.Provider,
			fieldModel, conv.Model,
			fieldUpdatedAt, formatTime(now),
		)
		if len(payloads) > 0 {
			pipe.RPush(ctx, s.messagesKey(conv.ID), payloads...)
		}
		s.expire(ctx, pipe, conv.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create conversation %s: %w", conv.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	meta, err := s.client.HGetAll(ctx, s.metaKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	if len(meta) == 0 {
		return nil, conversation.ErrNotFound
	}

	messages, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return &conversation.Conversation{
		ID:        id,
		Provider:  meta[fieldProvider],
		Model:     meta[fieldModel],
		Messages:  messages,
		CreatedAt: parseTime(meta[fieldCreatedAt]),
		UpdatedAt: parseTime(meta[fieldUpdatedAt]),
	}, nil
}

func (s *Store) Append(ctx context.Context, id string, msg types.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}

	now := formatTime(time.Now())
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		meta := s.metaKey(id)
		pipe.HSetNX(ctx, meta, fieldCreatedAt, now)
		pipe.HSet(ctx, meta, fieldUpdatedAt, now)
		if msg.Metadata != nil {
			pipe.HSet(ctx, meta, fieldProvider, msg.Metadata.Provider, fieldModel, msg.Metadata.Model)
		}
		pipe.RPush(ctx, s.messagesKey(id), payload)
		s.expire(ctx, pipe, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append to conversation %s: %w", id, err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, id string) ([]types.Message, error) {
	raw, err := s.client.LRange(ctx, s.messagesKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", id, err)
	}
	return decodeMessages(raw)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.metaKey(id), s.messagesKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	if n == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

func (s *Store) expire(ctx context.Context, pipe redis.Pipeliner, id string) {
	if s.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, s.metaKey(id), s.ttl)
	pipe.Expire(ctx, s.messagesKey(id), s.ttl)
}

func encodeMessages(messages []types.Message) ([]any, error) {
	out := make([]any, 0, len(messages))
	for _, msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("encode message %s: %w", msg.ID, err)
		}
		out = append(out, payload)
	}
	return out, nil
}

func decodeMessages(raw []string) ([]types.Message, error) {
	out := make([]types.Message, 0, len(raw))
	for i, item := range raw {
		var msg types.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message #%d: %w", i, err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n)
}

var _ conversation.Store = (*Store)(nil)
