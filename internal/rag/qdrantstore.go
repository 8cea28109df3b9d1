package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hiuminee/carebot-backend/internal/llm"
	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/repos"
	"github.com/hiuminee/carebot-backend/internal/types"
	"github.com/hiuminee/carebot-backend/internal/utils"
	"github.com/hiuminee/carebot-backend/internal/vectorstore/qdrant"
)

// knowledgeNamespace scopes all knowledge-base vectors inside the shared
// Qdrant collection.
const knowledgeNamespace = "knowledge"

// QdrantRetriever keeps chunk rows in Postgres as the source of truth and
// serves similarity search from a Qdrant collection.
type QdrantRetriever struct {
	embedder llm.Embedder
	store    *qdrant.VectorStore
	chunks   repos.ChunkRepo
	docs     repos.DocumentRepo
	topK     int
	log      *logger.Logger
}

func NewQdrantRetriever(embedder llm.Embedder, store *qdrant.VectorStore, chunks repos.ChunkRepo, docs repos.DocumentRepo, log *logger.Logger) *QdrantRetriever {
	return &QdrantRetriever{
		embedder: embedder,
		store:    store,
		chunks:   chunks,
		docs:     docs,
		topK:     utils.GetEnvAsInt("TOP_K", 5, log),
		log:      log.With("component", "QdrantRetriever"),
	}
}

func (r *QdrantRetriever) Retrieve(ctx context.Context, query string) ([]ScoredDocument, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embed query: empty result")
	}

	matches, err := r.store.QueryMatches(ctx, knowledgeNamespace, embeddings[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}

	docs := make([]ScoredDocument, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, ScoredDocument{
			Content:  m.Content,
			Metadata: m.Metadata,
			Score:    m.Score,
		})
	}
	r.log.Debug("retrieved chunks", "count", len(docs))
	return docs, nil
}

// IndexDocument replaces a document's chunk rows and their Qdrant points.
func (r *QdrantRetriever) IndexDocument(ctx context.Context, documentID uuid.UUID) error {
	doc, err := r.docs.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	if err := r.RemoveDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete existing chunks: %w", err)
	}

	parts := ChunkDocument(doc.Content, DefaultChunkSize, DefaultChunkOverlap)
	if len(parts) == 0 {
		return nil
	}

	embeddings, err := r.embedder.Embed(ctx, parts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(parts) {
		return fmt.Errorf("embed chunks: got %d embeddings for %d chunks", len(embeddings), len(parts))
	}

	// Chunk IDs are assigned client-side so the Postgres row and the Qdrant
	// point share the same identity.
	rows := make([]*types.DocumentChunk, 0, len(parts))
	vectors := make([]qdrant.Vector, 0, len(parts))
	for i, part := range parts {
		chunkID := uuid.New()
		rows = append(rows, &types.DocumentChunk{
			ID:          chunkID,
			DocumentID:  documentID,
			ChunkNumber: i,
			Content:     part,
		})

		meta := map[string]any{
			"document_id":  documentID.String(),
			"chunk_number": i,
			"content":      part,
		}
		fillDocumentMetadata(meta, doc)
		vectors = append(vectors, qdrant.Vector{
			ID:       chunkID.String(),
			Values:   embeddings[i],
			Metadata: meta,
		})
	}

	if err := r.chunks.CreateBatch(ctx, rows); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	if err := r.store.Upsert(ctx, knowledgeNamespace, vectors); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	r.log.Info("indexed document", "document_id", documentID, "chunks", len(rows))
	return nil
}

func (r *QdrantRetriever) RemoveDocument(ctx context.Context, documentID uuid.UUID) error {
	existing, err := r.chunks.ListByDocumentID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("list existing chunks: %w", err)
	}
	if len(existing) > 0 {
		ids := make([]string, 0, len(existing))
		for _, chunk := range existing {
			ids = append(ids, chunk.ID.String())
		}
		if err := r.store.DeleteIDs(ctx, knowledgeNamespace, ids); err != nil {
			return fmt.Errorf("delete vectors: %w", err)
		}
	}
	return r.chunks.DeleteByDocumentID(ctx, documentID)
}
