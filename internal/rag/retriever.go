package rag

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// ScoredDocument is one retrieved passage with its provenance metadata and a
// similarity score on a 0-1 scale, higher is more similar.
type ScoredDocument struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Retriever finds knowledge-base passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]ScoredDocument, error)
}

// Indexer maintains the vector index for knowledge-base documents.
type Indexer interface {
	IndexDocument(ctx context.Context, documentID uuid.UUID) error
	RemoveDocument(ctx context.Context, documentID uuid.UUID) error
}

// ContextText joins retrieved passages into the context block handed to the
// model, in retrieval order.
func ContextText(docs []ScoredDocument) string {
	if len(docs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, "\n\n")
}
