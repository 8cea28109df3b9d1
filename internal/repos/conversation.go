package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/types"
)

type ConversationRepo interface {
	Create(ctx context.Context, conv *types.Conversation) (*types.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Conversation, error)
	GetWithMessages(ctx context.Context, id uuid.UUID, messageLimit int) (*types.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*types.Conversation, error)
	UpdateSummary(ctx context.Context, id uuid.UUID, lastMessage string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: log.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) Create(ctx context.Context, conv *types.Conversation) (*types.Conversation, error) {
	if conv == nil {
		return nil, fmt.Errorf("missing conversation")
	}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *conversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.Conversation, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing conversation id")
	}
	var conv types.Conversation
	if err := r.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) GetWithMessages(ctx context.Context, id uuid.UUID, messageLimit int) (*types.Conversation, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing conversation id")
	}
	if messageLimit <= 0 {
		messageLimit = 50
	}
	var conv types.Conversation
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Limit(messageLimit)
		}).
		First(&conv, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*types.Conversation, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	if limit <= 0 {
		limit = 20
	}
	var convs []*types.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// UpdateSummary bumps the conversation's append-derived counters: message
// count, last-message snapshot, and a title taken from the first message.
func (r *conversationRepo) UpdateSummary(ctx context.Context, id uuid.UUID, lastMessage string) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing conversation id")
	}
	updates := map[string]interface{}{
		"last_message":  truncate(lastMessage, 255),
		"message_count": gorm.Expr("message_count + 1"),
	}
	return r.db.WithContext(ctx).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *conversationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing conversation id")
	}
	return r.db.WithContext(ctx).Delete(&types.Conversation{}, "id = ?", id).Error
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
