package gormstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/database"
)

// Store 基于 PostgreSQL 的会话存储
type Store struct {
	db *database.DB
}

// New 创建存储并迁移表结构
func New(db *database.DB) (*Store, error) {
	if err := db.Migrate(&ConversationModel{}, &MessageModel{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Create(ctx context.Context, conv *conversation.Conversation) error {
	return s.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		row := &ConversationModel{
			ID:        conv.ID,
			Provider:  conv.Provider,
			Model:     conv.Model,
			CreatedAt: conv.CreatedAt,
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("create conversation %s: %w", conv.ID, err)
		}
		for _, msg := range conv.Messages {
			if err := insertMessage(tx, conv.ID, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	var row ConversationModel
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, conversation.ErrNotFound
		}
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}

	messages, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return row.toConversation(messages), nil
}

func (s *Store) Append(ctx context.Context, id string, msg types.Message) error {
	return s.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		// 会话不存在时自动创建
		row := &ConversationModel{ID: id}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
			return fmt.Errorf("ensure conversation %s: %w", id, err)
		}

		updates := map[string]any{"updated_at": tx.NowFunc()}
		if msg.Metadata != nil {
			updates["provider"] = msg.Metadata.Provider
			updates["model"] = msg.Metadata.Model
		}
		if err := tx.Model(&ConversationModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("touch conversation %s: %w", id, err)
		}
		return insertMessage(tx, id, msg)
	})
}

func (s *Store) History(ctx context.Context, id string) ([]types.Message, error) {
	var rows []MessageModel
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", id, err)
	}

	messages := make([]types.Message, 0, len(rows))
	for i := range rows {
		msg, err := rows[i].toMessage()
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&MessageModel{}).Error; err != nil {
			return fmt.Errorf("delete messages %s: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&ConversationModel{})
		if res.Error != nil {
			return fmt.Errorf("delete conversation %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return conversation.ErrNotFound
		}
		return nil
	})
}

func insertMessage(tx *gorm.DB, conversationID string, msg types.Message) error {
	row, err := toMessageModel(conversationID, msg)
	if err != nil {
		return err
	}
	if err := tx.Create(row).Error; err != nil {
		return fmt.Errorf("insert message %s: %w", msg.ID, err)
	}
	return nil
}

var _ conversation.Store = (*Store)(nil)
