package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message is append-only: once persisted, neither its content nor its
// conversation id ever changes.
type Message struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConversationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"conversation_id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	IsBot          bool           `gorm:"column:is_bot;not null;default:false" json:"is_bot"`
	Content        string         `gorm:"column:content;not null" json:"content"`
	Metadata       datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Message) TableName() string {
	return "message"
}
