package gormstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/database"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

func TestMessageModel_RoundTrip(t *testing.T) {
	msg := types.NewMessage(types.RoleAssistant, "4")
	msg.Usage = &types.Usage{PromptTokens: 5, CompletionTokens: 1, TotalTokens: 6}
	msg.Metadata = &types.Metadata{Provider: "openai", Model: "gpt-4o", FinishReason: "stop"}

	row, err := toMessageModel("c1", msg)
	require.NoError(t, err)
	assert.Equal(t, "c1", row.ConversationID)
	assert.Equal(t, msg.ID, row.MessageID)
	assert.Equal(t, "assistant", row.Role)
	assert.Equal(t, "4", row.Content)

	got, err := row.toMessage()
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, 6, got.Usage.TotalTokens)
	assert.Equal(t, "stop", got.Metadata.FinishReason)

	_, err = (&MessageModel{MessageID: "x", Payload: "{"}).toMessage()
	assert.Error(t, err)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "conversations", ConversationModel{}.TableName())
	assert.Equal(t, "conversation_messages", MessageModel{}.TableName())
}

// 需要真实 PostgreSQL，设置 AICHAT_TEST_POSTGRES_DSN 后运行
func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("AICHAT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AICHAT_TEST_POSTGRES_DSN not set")
	}

	db, err := database.Open(postgres.Open(dsn), database.DefaultConfig(), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := New(db)
	require.NoError(t, err)
	ctx := context.Background()
	id := uuid.NewString()

	history, err := s.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, conversation.ErrNotFound)

	reply := types.NewMessage(types.RoleAssistant, "4")
	reply.Metadata = &types.Metadata{Provider: "anthropic", Model: "claude-3-5-sonnet-latest"}
	require.NoError(t, s.Append(ctx, id, types.NewMessage(types.RoleUser, "2+2?")))
	require.NoError(t, s.Append(ctx, id, reply))

	conv, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "2+2?", conv.Messages[0].Content)
	assert.Equal(t, "4", conv.Messages[1].Content)
	assert.Equal(t, "anthropic", conv.Provider)

	assert.Error(t, s.Create(ctx, &conversation.Conversation{ID: id}))

	require.NoError(t, s.Delete(ctx, id))
	assert.ErrorIs(t, s.Delete(ctx, id), conversation.ErrNotFound)
}
