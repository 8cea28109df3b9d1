package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hiuminee/carebot-backend/internal/llm"
	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/repos"
	"github.com/hiuminee/carebot-backend/internal/types"
	"github.com/hiuminee/carebot-backend/internal/utils"
)

// PGRetriever retrieves and indexes knowledge-base chunks stored in Postgres
// with pgvector embeddings.
type PGRetriever struct {
	embedder llm.Embedder
	chunks   repos.ChunkRepo
	docs     repos.DocumentRepo
	topK     int
	log      *logger.Logger
}

func NewPGRetriever(embedder llm.Embedder, chunks repos.ChunkRepo, docs repos.DocumentRepo, log *logger.Logger) *PGRetriever {
	return &PGRetriever{
		embedder: embedder,
		chunks:   chunks,
		docs:     docs,
		topK:     utils.GetEnvAsInt("TOP_K", 5, log),
		log:      log.With("component", "PGRetriever"),
	}
}

func (r *PGRetriever) Retrieve(ctx context.Context, query string) ([]ScoredDocument, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embed query: empty result")
	}

	hits, err := r.chunks.SearchSimilar(ctx, embeddings[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	metaByDoc := make(map[uuid.UUID]map[string]any, len(hits))
	docs := make([]ScoredDocument, 0, len(hits))
	for _, hit := range hits {
		meta, ok := metaByDoc[hit.DocumentID]
		if !ok {
			meta = r.documentMetadata(ctx, hit.DocumentID)
			metaByDoc[hit.DocumentID] = meta
		}
		docs = append(docs, ScoredDocument{
			Content:  hit.Content,
			Metadata: meta,
			Score:    hit.Score,
		})
	}
	r.log.Debug("retrieved chunks", "count", len(docs))
	return docs, nil
}

// documentMetadata resolves citation fields for a chunk's parent document.
// A missing parent degrades to minimal metadata rather than failing retrieval.
func (r *PGRetriever) documentMetadata(ctx context.Context, documentID uuid.UUID) map[string]any {
	meta := map[string]any{"document_id": documentID.String()}
	doc, err := r.docs.GetByID(ctx, documentID)
	if err != nil {
		r.log.Warn("load chunk parent document", "document_id", documentID, "error", err)
		return meta
	}
	fillDocumentMetadata(meta, doc)
	return meta
}

func fillDocumentMetadata(meta map[string]any, doc *types.Document) {
	if doc.Title != "" {
		meta["title"] = doc.Title
	}
	if doc.URL != "" {
		meta["url"] = doc.URL
	}
	if doc.Description != "" {
		meta["description"] = doc.Description
	}
	if doc.PublicationDate != nil {
		meta["publication_date"] = doc.PublicationDate.Format(time.DateOnly)
	}
}

// IndexDocument replaces a document's chunks with freshly embedded ones.
func (r *PGRetriever) IndexDocument(ctx context.Context, documentID uuid.UUID) error {
	doc, err := r.docs.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	if err := r.chunks.DeleteByDocumentID(ctx, documentID); err != nil {
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

	rows := make([]*types.DocumentChunk, 0, len(parts))
	for i, part := range parts {
		rows = append(rows, &types.DocumentChunk{
			DocumentID:  documentID,
			ChunkNumber: i,
			Content:     part,
			Embedding:   repos.VectorLiteral(embeddings[i]),
		})
	}
	if err := r.chunks.CreateBatch(ctx, rows); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	r.log.Info("indexed document", "document_id", documentID, "chunks", len(rows))
	return nil
}

func (r *PGRetriever) RemoveDocument(ctx context.Context, documentID uuid.UUID) error {
	return r.chunks.DeleteByDocumentID(ctx, documentID)
}
