package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hiuminee/carebot-backend/internal/llm"
	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/middleware"
	"github.com/hiuminee/carebot-backend/internal/services"
)

type ChatHandler struct {
	log         *logger.Logger
	chatService services.ChatService
}

func NewChatHandler(log *logger.Logger, chatService services.ChatService) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), chatService: chatService}
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

func (req *sendMessageRequest) parse() (uuid.UUID, string, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return uuid.Nil, "", errors.New("content is required")
	}
	if req.ConversationID == "" {
		return uuid.Nil, content, nil
	}
	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		return uuid.Nil, "", errors.New("invalid conversation_id")
	}
	return conversationID, content, nil
}

func (ch *ChatHandler) SendMessage(c *gin.Context) {
	userID, err := middleware.UserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
		return
	}
	conversationID, content, err := req.parse()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	resp, err := ch.chatService.SendMessage(c.Request.Context(), userID, conversationID, content)
	if err != nil {
		ch.respondChatError(c, err)
		return
	}
	RespondOK(c, resp)
}

// StreamMessage runs the pipeline with server-sent events: one event per
// frame, then a terminal "response" event carrying the full MessageResponse.
func (ch *ChatHandler) StreamMessage(c *gin.Context) {
	userID, err := middleware.UserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
		return
	}
	conversationID, content, err := req.parse()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher, _ := c.Writer.(http.Flusher)

	emit := func(frame llm.StreamFrame) {
		writeSSEEvent(c, "frame", frame, flusher)
	}

	resp, err := ch.chatService.StreamMessage(c.Request.Context(), userID, conversationID, content, emit)
	if err != nil {
		writeSSEEvent(c, "error", gin.H{"error": "processing failed"}, flusher)
		return
	}
	writeSSEEvent(c, "response", resp, flusher)
}

func writeSSEEvent(c *gin.Context, event string, payload any, flusher http.Flusher) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.Writer.WriteString("event: " + event + "\n")
	c.Writer.WriteString("data: " + string(raw) + "\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func (ch *ChatHandler) CreateConversation(c *gin.Context) {
	userID, err := middleware.UserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
		return
	}
	conv, err := ch.chatService.CreateConversation(c.Request.Context(), userID, req.Title)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (ch *ChatHandler) ListConversations(c *gin.Context) {
	userID, err := middleware.UserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	offset, limit := pagination(c)
	convs, err := ch.chatService.ListConversations(c.Request.Context(), userID, offset, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"conversations": convs})
}

func (ch *ChatHandler) GetConversation(c *gin.Context) {
	userID, err := middleware.UserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid conversation id"))
		return
	}
	conv, err := ch.chatService.GetConversation(c.Request.Context(), userID, conversationID)
	if err != nil {
		ch.respondChatError(c, err)
		return
	}
	RespondOK(c, conv)
}

func (ch *ChatHandler) DeleteConversation(c *gin.Context) {
	userID, err := middleware.UserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid conversation id"))
		return
	}
	if err := ch.chatService.DeleteConversation(c.Request.Context(), userID, conversationID); err != nil {
		ch.respondChatError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func (ch *ChatHandler) ListMessages(c *gin.Context) {
	userID, err := middleware.UserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid conversation id"))
		return
	}
	offset, limit := pagination(c)
	messages, err := ch.chatService.ListMessages(c.Request.Context(), userID, conversationID, offset, limit)
	if err != nil {
		ch.respondChatError(c, err)
		return
	}
	RespondOK(c, gin.H{"messages": messages})
}

func (ch *ChatHandler) respondChatError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrConversationNotFound) {
		RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	ch.log.Error("chat request failed", "error", err)
	RespondError(c, http.StatusInternalServerError, "internal_error", errors.New("something went wrong"))
}

func pagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}
