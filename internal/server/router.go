package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hiuminee/carebot-backend/internal/handlers"
	"github.com/hiuminee/carebot-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler      *handlers.AuthHandler
	AuthMiddleware   *middleware.AuthMiddleware
	ChatHandler      *handlers.ChatHandler
	IntentHandler    *handlers.IntentHandler
	KnowledgeHandler *handlers.KnowledgeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/api/register", cfg.AuthHandler.Register)
	router.POST("/api/login", cfg.AuthHandler.Login)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Chat
	api.POST("/chat/message", cfg.ChatHandler.SendMessage)
	api.POST("/chat/stream", cfg.ChatHandler.StreamMessage)

	// Conversations
	api.POST("/conversations", cfg.ChatHandler.CreateConversation)
	api.GET("/conversations", cfg.ChatHandler.ListConversations)
	api.GET("/conversations/:id", cfg.ChatHandler.GetConversation)
	api.DELETE("/conversations/:id", cfg.ChatHandler.DeleteConversation)
	api.GET("/conversations/:id/messages", cfg.ChatHandler.ListMessages)

	// Intent
	api.POST("/intent/classify", cfg.IntentHandler.Classify)

	// Knowledge base
	api.POST("/knowledge/documents", cfg.KnowledgeHandler.CreateDocument)
	api.GET("/knowledge/documents", cfg.KnowledgeHandler.ListDocuments)
	api.GET("/knowledge/documents/:id", cfg.KnowledgeHandler.GetDocument)
	api.DELETE("/knowledge/documents/:id", cfg.KnowledgeHandler.DeleteDocument)
	api.POST("/knowledge/reindex", cfg.KnowledgeHandler.Reindex)

	return router
}
