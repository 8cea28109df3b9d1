package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/types"
)

type MessageRepo interface {
	Create(ctx context.Context, msg *types.Message) (*types.Message, error)
	ListRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]*types.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, offset, limit int) ([]*types.Message, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(ctx context.Context, msg *types.Message) (*types.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("missing message")
	}
	if msg.ConversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation id")
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// ListRecent returns the newest messages in chronological order.
func (r *messageRepo) ListRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]*types.Message, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation id")
	}
	if limit <= 0 {
		limit = 10
	}
	var msgs []*types.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, offset, limit int) ([]*types.Message, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation id")
	}
	if limit <= 0 {
		limit = 50
	}
	var msgs []*types.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
