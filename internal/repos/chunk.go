package repos

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/types"
)

// ChunkHit is one similarity-search result row. Score is on a 0-1 scale,
// higher is more similar.
type ChunkHit struct {
	ChunkID     uuid.UUID
	DocumentID  uuid.UUID
	ChunkNumber int
	Content     string
	Score       float64
}

type ChunkRepo interface {
	CreateBatch(ctx context.Context, chunks []*types.DocumentChunk) error
	ListByDocumentID(ctx context.Context, documentID uuid.UUID) ([]types.DocumentChunk, error)
	DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error
	SearchSimilar(ctx context.Context, queryEmbedding []float32, limit int) ([]ChunkHit, error)
}

type chunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, log *logger.Logger) ChunkRepo {
	return &chunkRepo{db: db, log: log.With("repo", "ChunkRepo")}
}

func (r *chunkRepo) CreateBatch(ctx context.Context, chunks []*types.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&chunks).Error
}

func (r *chunkRepo) ListByDocumentID(ctx context.Context, documentID uuid.UUID) ([]types.DocumentChunk, error) {
	if documentID == uuid.Nil {
		return nil, fmt.Errorf("missing document id")
	}
	var chunks []types.DocumentChunk
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_number ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *chunkRepo) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	if documentID == uuid.Nil {
		return fmt.Errorf("missing document id")
	}
	return r.db.WithContext(ctx).
		Unscoped().
		Delete(&types.DocumentChunk{}, "document_id = ?", documentID).Error
}

// SearchSimilar ranks chunks by pgvector L2 distance ascending. Embeddings
// are unit-norm, so distance maps onto a 0-1 similarity as 1 - d^2/2.
func (r *chunkRepo) SearchSimilar(ctx context.Context, queryEmbedding []float32, limit int) ([]ChunkHit, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("missing query embedding")
	}
	if limit <= 0 {
		limit = 5
	}

	var rows []struct {
		ID          uuid.UUID
		DocumentID  uuid.UUID
		ChunkNumber int
		Content     string
		Distance    float64
	}
	query := `
		SELECT id, document_id, chunk_number, content,
		       embedding <-> CAST(? AS vector) AS distance
		FROM document_chunk
		WHERE deleted_at IS NULL
		ORDER BY distance ASC
		LIMIT ?`
	lit := VectorLiteral(queryEmbedding)
	if err := r.db.WithContext(ctx).Raw(query, lit, limit).Scan(&rows).Error; err != nil {
		return nil, err
	}

	hits := make([]ChunkHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, ChunkHit{
			ChunkID:     row.ID,
			DocumentID:  row.DocumentID,
			ChunkNumber: row.ChunkNumber,
			Content:     row.Content,
			Score:       scoreFromDistance(row.Distance),
		})
	}
	return hits, nil
}

func scoreFromDistance(d float64) float64 {
	score := 1 - d*d/2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// VectorLiteral renders a pgvector input literal, e.g. "[0.1,0.2]".
func VectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
