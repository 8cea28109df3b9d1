package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Document struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title           string          `gorm:"not null;column:title" json:"title"`
	Content         string          `gorm:"column:content;not null" json:"content"`
	Source          string          `gorm:"column:source" json:"source"`
	URL             string          `gorm:"column:url" json:"url"`
	Description     string          `gorm:"column:description" json:"description"`
	PublicationDate *time.Time      `gorm:"column:publication_date" json:"publication_date,omitempty"`
	Metadata        datatypes.JSON  `gorm:"type:jsonb;column:metadata" json:"metadata"`
	Chunks          []DocumentChunk `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"chunks,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string {
	return "document"
}

// DocumentChunk holds one retrieval unit of a document. Embedding is a
// pgvector column written and queried through raw SQL in the chunk repo.
type DocumentChunk struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"document_id"`
	Document    *Document      `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	ChunkNumber int            `gorm:"column:chunk_number;not null" json:"chunk_number"`
	Content     string         `gorm:"column:content;not null" json:"content"`
	Embedding   string         `gorm:"type:vector(1536);column:embedding" json:"-"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (DocumentChunk) TableName() string {
	return "document_chunk"
}
