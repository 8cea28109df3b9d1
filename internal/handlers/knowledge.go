package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/services"
	"github.com/hiuminee/carebot-backend/internal/types"
)

type KnowledgeHandler struct {
	log              *logger.Logger
	knowledgeService services.KnowledgeService
}

func NewKnowledgeHandler(log *logger.Logger, knowledgeService services.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{log: log.With("handler", "KnowledgeHandler"), knowledgeService: knowledgeService}
}

func (kh *KnowledgeHandler) CreateDocument(c *gin.Context) {
	var req struct {
		Title           string `json:"title"`
		Content         string `json:"content"`
		Source          string `json:"source"`
		URL             string `json:"url"`
		Description     string `json:"description"`
		PublicationDate string `json:"publication_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
		return
	}

	doc := &types.Document{
		Title:       req.Title,
		Content:     req.Content,
		Source:      req.Source,
		URL:         req.URL,
		Description: req.Description,
	}
	if req.PublicationDate != "" {
		published, err := time.Parse(time.DateOnly, req.PublicationDate)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("publication_date must be YYYY-MM-DD"))
			return
		}
		doc.PublicationDate = &published
	}

	created, err := kh.knowledgeService.CreateDocument(c.Request.Context(), doc)
	if err != nil {
		kh.log.Error("create document failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "create_failed", errors.New("could not create document"))
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (kh *KnowledgeHandler) GetDocument(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid document id"))
		return
	}
	doc, err := kh.knowledgeService.GetDocument(c.Request.Context(), documentID)
	if err != nil {
		RespondError(c, http.StatusNotFound, "not_found", errors.New("document not found"))
		return
	}
	RespondOK(c, doc)
}

func (kh *KnowledgeHandler) ListDocuments(c *gin.Context) {
	offset, limit := pagination(c)
	docs, err := kh.knowledgeService.ListDocuments(c.Request.Context(), offset, limit)
	if err != nil {
		kh.log.Error("list documents failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "list_failed", errors.New("could not list documents"))
		return
	}
	RespondOK(c, gin.H{"documents": docs})
}

func (kh *KnowledgeHandler) DeleteDocument(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid document id"))
		return
	}
	if err := kh.knowledgeService.DeleteDocument(c.Request.Context(), documentID); err != nil {
		kh.log.Error("delete document failed", "document_id", documentID, "error", err)
		RespondError(c, http.StatusInternalServerError, "delete_failed", errors.New("could not delete document"))
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func (kh *KnowledgeHandler) Reindex(c *gin.Context) {
	count, err := kh.knowledgeService.ReindexAll(c.Request.Context())
	if err != nil {
		kh.log.Error("reindex failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "reindex_failed", errors.New("reindex failed"))
		return
	}
	RespondOK(c, gin.H{"reindexed": count})
}
