package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is created lazily on the first message and keeps summary
// counters that update on every append. The pipeline never deletes it.
type Conversation struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User         *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Title        string         `gorm:"column:title" json:"title"`
	LastMessage  string         `gorm:"column:last_message" json:"last_message"`
	MessageCount int            `gorm:"column:message_count;not null;default:0" json:"message_count"`
	Messages     []Message      `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConversationID;references:ID" json:"messages,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Conversation) TableName() string {
	return "conversation"
}
