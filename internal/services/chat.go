package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/hiuminee/carebot-backend/internal/clients/redis"
	"github.com/hiuminee/carebot-backend/internal/llm"
	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/pipeline"
	"github.com/hiuminee/carebot-backend/internal/repos"
	"github.com/hiuminee/carebot-backend/internal/types"
	"github.com/hiuminee/carebot-backend/internal/utils"
)

var ErrConversationNotFound = fmt.Errorf("conversation not found")

const conversationTitleLimit = 50

type ChatService interface {
	CreateConversation(ctx context.Context, userID uuid.UUID, title string) (*types.Conversation, error)
	GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*types.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*types.Conversation, error)
	DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error
	ListMessages(ctx context.Context, userID, conversationID uuid.UUID, offset, limit int) ([]*types.Message, error)

	// SendMessage runs one user message through the pipeline. A nil
	// conversation id starts a new conversation titled from the message.
	SendMessage(ctx context.Context, userID, conversationID uuid.UUID, content string) (*pipeline.MessageResponse, error)
	StreamMessage(ctx context.Context, userID, conversationID uuid.UUID, content string, emit func(llm.StreamFrame)) (*pipeline.MessageResponse, error)
}

type chatService struct {
	log           *logger.Logger
	conversations repos.ConversationRepo
	messages      repos.MessageRepo
	pipeline      *pipeline.MessagePipeline
	history       redis.HistoryCache
	historyWindow int
}

func NewChatService(
	log *logger.Logger,
	conversations repos.ConversationRepo,
	messages repos.MessageRepo,
	msgPipeline *pipeline.MessagePipeline,
	history redis.HistoryCache,
) ChatService {
	return &chatService{
		log:           log.With("service", "ChatService"),
		conversations: conversations,
		messages:      messages,
		pipeline:      msgPipeline,
		history:       history,
		historyWindow: utils.GetEnvAsInt("HISTORY_WINDOW", 10, log),
	}
}

func (s *chatService) CreateConversation(ctx context.Context, userID uuid.UUID, title string) (*types.Conversation, error) {
	return s.conversations.Create(ctx, &types.Conversation{
		UserID: userID,
		Title:  truncateTitle(title),
	})
}

func (s *chatService) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*types.Conversation, error) {
	conv, err := s.conversations.GetWithMessages(ctx, conversationID, s.historyWindow)
	if err != nil || conv.UserID != userID {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (s *chatService) ListConversations(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*types.Conversation, error) {
	return s.conversations.ListByUser(ctx, userID, offset, limit)
}

func (s *chatService) DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil || conv.UserID != userID {
		return ErrConversationNotFound
	}
	if err := s.conversations.Delete(ctx, conversationID); err != nil {
		return err
	}
	s.history.Invalidate(ctx, conversationID)
	return nil
}

func (s *chatService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, offset, limit int) ([]*types.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil || conv.UserID != userID {
		return nil, ErrConversationNotFound
	}
	return s.messages.ListByConversation(ctx, conversationID, offset, limit)
}

func (s *chatService) SendMessage(ctx context.Context, userID, conversationID uuid.UUID, content string) (*pipeline.MessageResponse, error) {
	return s.sendMessage(ctx, userID, conversationID, content, nil)
}

func (s *chatService) StreamMessage(ctx context.Context, userID, conversationID uuid.UUID, content string, emit func(llm.StreamFrame)) (*pipeline.MessageResponse, error) {
	return s.sendMessage(ctx, userID, conversationID, content, emit)
}

func (s *chatService) sendMessage(ctx context.Context, userID, conversationID uuid.UUID, content string, emit func(llm.StreamFrame)) (*pipeline.MessageResponse, error) {
	conv, err := s.ensureConversation(ctx, userID, conversationID, content)
	if err != nil {
		return nil, err
	}

	history := s.loadHistory(ctx, conv.ID)

	userMsg, err := s.messages.Create(ctx, &types.Message{
		ConversationID: conv.ID,
		UserID:         userID,
		Content:        content,
	})
	if err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	if err := s.conversations.UpdateSummary(ctx, conv.ID, content); err != nil {
		s.log.Warn("update conversation summary", "conversation_id", conv.ID, "error", err)
	}

	in := pipeline.MessageInput{
		MessageID:      userMsg.ID,
		ConversationID: conv.ID,
		UserID:         userID,
		Content:        content,
		CreatedAt:      userMsg.CreatedAt,
	}

	var resp *pipeline.MessageResponse
	if emit != nil {
		resp, err = s.pipeline.ProcessStream(ctx, in, history, emit)
	} else {
		resp, err = s.pipeline.Process(ctx, in, history)
	}
	if err != nil {
		// Full detail stays internal; the caller sees a generic message.
		s.log.Error("pipeline failed", "message_id", userMsg.ID, "error", err)
		resp = &pipeline.MessageResponse{
			MessageID:      userMsg.ID,
			Response:       pipeline.GenericFailureText,
			ConversationID: conv.ID,
			Timestamp:      userMsg.CreatedAt,
		}
	}

	s.persistBotMessage(ctx, conv, userID, resp)
	s.refreshHistory(ctx, conv.ID, history, content, resp.Response)
	return resp, nil
}

func (s *chatService) ensureConversation(ctx context.Context, userID, conversationID uuid.UUID, content string) (*types.Conversation, error) {
	if conversationID == uuid.Nil {
		return s.CreateConversation(ctx, userID, content)
	}
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil || conv.UserID != userID {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// loadHistory reads the recent-messages window through the cache. Failures
// degrade to an empty history, never to a failed turn.
func (s *chatService) loadHistory(ctx context.Context, conversationID uuid.UUID) []llm.ChatMessage {
	if cached, ok := s.history.Get(ctx, conversationID); ok {
		return cached
	}
	stored, err := s.messages.ListRecent(ctx, conversationID, s.historyWindow)
	if err != nil {
		s.log.Warn("load conversation history", "conversation_id", conversationID, "error", err)
		return nil
	}
	history := make([]llm.ChatMessage, 0, len(stored))
	for _, msg := range stored {
		role := llm.RoleUser
		if msg.IsBot {
			role = llm.RoleAssistant
		}
		history = append(history, llm.ChatMessage{Role: role, Content: msg.Content})
	}
	return history
}

func (s *chatService) persistBotMessage(ctx context.Context, conv *types.Conversation, userID uuid.UUID, resp *pipeline.MessageResponse) {
	metadata, err := json.Marshal(map[string]any{
		"intent":      resp.Intent,
		"sources":     resp.Sources,
		"suggestions": resp.Suggestions,
	})
	if err != nil {
		s.log.Warn("encode bot message metadata", "conversation_id", conv.ID, "error", err)
		metadata = nil
	}

	if _, err := s.messages.Create(ctx, &types.Message{
		ConversationID: conv.ID,
		UserID:         userID,
		IsBot:          true,
		Content:        resp.Response,
		Metadata:       datatypes.JSON(metadata),
	}); err != nil {
		s.log.Error("persist bot message", "conversation_id", conv.ID, "error", err)
		return
	}
	if err := s.conversations.UpdateSummary(ctx, conv.ID, resp.Response); err != nil {
		s.log.Warn("update conversation summary", "conversation_id", conv.ID, "error", err)
	}
}

func (s *chatService) refreshHistory(ctx context.Context, conversationID uuid.UUID, history []llm.ChatMessage, userContent, botContent string) {
	updated := append(history,
		llm.ChatMessage{Role: llm.RoleUser, Content: userContent},
		llm.ChatMessage{Role: llm.RoleAssistant, Content: botContent},
	)
	if len(updated) > s.historyWindow {
		updated = updated[len(updated)-s.historyWindow:]
	}
	s.history.Set(ctx, conversationID, updated)
}

func truncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= conversationTitleLimit {
		return s
	}
	return string(runes[:conversationTitleLimit])
}
