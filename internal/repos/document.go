package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/types"
)

type DocumentRepo interface {
	Create(ctx context.Context, doc *types.Document) (*types.Document, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Document, error)
	List(ctx context.Context, offset, limit int) ([]*types.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, log *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: log.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(ctx context.Context, doc *types.Document) (*types.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("missing document")
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing document id")
	}
	var doc types.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) List(ctx context.Context, offset, limit int) ([]*types.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	var docs []*types.Document
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing document id")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&types.DocumentChunk{}, "document_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&types.Document{}, "id = ?", id).Error
	})
}
