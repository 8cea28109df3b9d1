package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/rag"
	"github.com/hiuminee/carebot-backend/internal/repos"
	"github.com/hiuminee/carebot-backend/internal/types"
	"github.com/hiuminee/carebot-backend/internal/utils"
)

// reindexPageSize bounds how many documents one reindex batch loads.
const reindexPageSize = 100

type KnowledgeService interface {
	CreateDocument(ctx context.Context, doc *types.Document) (*types.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*types.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*types.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	// ReindexAll re-chunks and re-embeds every document, a bounded number
	// at a time. Returns how many documents were reindexed.
	ReindexAll(ctx context.Context) (int, error)
}

type knowledgeService struct {
	log         *logger.Logger
	documents   repos.DocumentRepo
	indexer     rag.Indexer
	concurrency int
}

func NewKnowledgeService(log *logger.Logger, documents repos.DocumentRepo, indexer rag.Indexer) KnowledgeService {
	return &knowledgeService{
		log:         log.With("service", "KnowledgeService"),
		documents:   documents,
		indexer:     indexer,
		concurrency: utils.GetEnvAsInt("REINDEX_CONCURRENCY", 4, log),
	}
}

func (s *knowledgeService) CreateDocument(ctx context.Context, doc *types.Document) (*types.Document, error) {
	if doc.Title == "" || doc.Content == "" {
		return nil, fmt.Errorf("document title and content are required")
	}

	created, err := s.documents.Create(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if err := s.indexer.IndexDocument(ctx, created.ID); err != nil {
		return nil, fmt.Errorf("index document: %w", err)
	}
	return created, nil
}

func (s *knowledgeService) GetDocument(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	return s.documents.GetByID(ctx, id)
}

func (s *knowledgeService) ListDocuments(ctx context.Context, offset, limit int) ([]*types.Document, error) {
	return s.documents.List(ctx, offset, limit)
}

func (s *knowledgeService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	if err := s.indexer.RemoveDocument(ctx, id); err != nil {
		return fmt.Errorf("remove document from index: %w", err)
	}
	return s.documents.Delete(ctx, id)
}

func (s *knowledgeService) ReindexAll(ctx context.Context) (int, error) {
	started := time.Now()
	total := 0

	for offset := 0; ; offset += reindexPageSize {
		docs, err := s.documents.List(ctx, offset, reindexPageSize)
		if err != nil {
			return total, fmt.Errorf("list documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, doc := range docs {
			doc := doc
			g.Go(func() error {
				if err := s.indexer.IndexDocument(gctx, doc.ID); err != nil {
					return fmt.Errorf("reindex document %s: %w", doc.ID, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total, err
		}
		total += len(docs)

		if len(docs) < reindexPageSize {
			break
		}
	}

	s.log.Info("reindexed knowledge base", "documents", total, "elapsed", time.Since(started).String())
	return total, nil
}
