package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hiuminee/carebot-backend/internal/clients/redis"
	"github.com/hiuminee/carebot-backend/internal/config"
	"github.com/hiuminee/carebot-backend/internal/data/db"
	"github.com/hiuminee/carebot-backend/internal/guardrails"
	"github.com/hiuminee/carebot-backend/internal/handlers"
	"github.com/hiuminee/carebot-backend/internal/intent"
	"github.com/hiuminee/carebot-backend/internal/llm"
	"github.com/hiuminee/carebot-backend/internal/llm/gemini"
	"github.com/hiuminee/carebot-backend/internal/llm/openai"
	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/middleware"
	"github.com/hiuminee/carebot-backend/internal/pipeline"
	"github.com/hiuminee/carebot-backend/internal/rag"
	"github.com/hiuminee/carebot-backend/internal/repos"
	"github.com/hiuminee/carebot-backend/internal/respond"
	"github.com/hiuminee/carebot-backend/internal/server"
	"github.com/hiuminee/carebot-backend/internal/services"
	"github.com/hiuminee/carebot-backend/internal/textproc"
	"github.com/hiuminee/carebot-backend/internal/utils"
	"github.com/hiuminee/carebot-backend/internal/vectorstore/qdrant"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	maxTurns := utils.GetEnvAsInt("TOOL_MAX_TURNS", llm.DefaultMaxTurns, log)
	confidenceThreshold := utils.GetEnvAsFloat("INTENT_CONFIDENCE_THRESHOLD", intent.DefaultConfidenceThreshold, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrate(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	conversationRepo := repos.NewConversationRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)
	documentRepo := repos.NewDocumentRepo(thePG, log)
	chunkRepo := repos.NewChunkRepo(thePG, log)

	// Model providers
	log.Info("Setting up model providers from main...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Fatal("OpenAI client init failed", "error", err)
	}
	var provider llm.Provider = openaiClient
	if strings.EqualFold(os.Getenv("LLM_PROVIDER"), "gemini") {
		geminiClient, err := gemini.NewClient(log)
		if err != nil {
			log.Fatal("Gemini client init failed", "error", err)
		}
		provider = geminiClient
	}
	var embedder llm.Embedder = openaiClient

	// Retrieval backend
	var retriever rag.Retriever
	var indexer rag.Indexer
	if strings.EqualFold(os.Getenv("VECTOR_BACKEND"), "qdrant") {
		qdrantCfg, err := qdrant.ResolveConfigFromEnv()
		if err != nil {
			log.Fatal("Qdrant config invalid", "error", err)
		}
		store, err := qdrant.NewVectorStore(log, qdrantCfg)
		if err != nil {
			log.Fatal("Qdrant init failed", "error", err)
		}
		backend := rag.NewQdrantRetriever(embedder, store, chunkRepo, documentRepo, log)
		retriever, indexer = backend, backend
	} else {
		backend := rag.NewPGRetriever(embedder, chunkRepo, documentRepo, log)
		retriever, indexer = backend, backend
	}

	// Guardrails and pipeline stages
	safetyOpts, err := config.LoadSafetyOptions(log)
	if err != nil {
		log.Fatal("Safety config failed", "error", err)
	}
	safety := guardrails.NewSafetyGuardrails(safetyOpts, log)
	emergency := guardrails.NewEmergencyDetector(log)
	classifier := intent.NewClassifier(provider, confidenceThreshold, log)
	processor := textproc.NewProcessor(log)
	suggestions := respond.NewSuggestionGenerator(log)
	runner := llm.NewToolRunner(provider, pipeline.BuiltinTools(retriever), maxTurns, log)
	msgPipeline := pipeline.NewMessagePipeline(safety, emergency, classifier, processor, retriever, runner, suggestions, log)

	// History cache
	var history redis.HistoryCache = redis.NoopHistoryCache{}
	if os.Getenv("REDIS_ADDR") != "" {
		cache, err := redis.NewHistoryCache(log)
		if err != nil {
			log.Warn("Redis init failed, running without history cache", "error", err)
		} else {
			history = cache
			defer cache.Close()
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	authService := services.NewAuthService(log, userRepo, jwtSecretKey)
	chatService := services.NewChatService(log, conversationRepo, messageRepo, msgPipeline, history)
	knowledgeService := services.NewKnowledgeService(log, documentRepo, indexer)

	// Handlers
	log.Info("Setting up Handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	authMiddleware := middleware.NewAuthMiddleware(log, authService)
	chatHandler := handlers.NewChatHandler(log, chatService)
	intentHandler := handlers.NewIntentHandler(log, classifier)
	knowledgeHandler := handlers.NewKnowledgeHandler(log, knowledgeService)

	router := server.NewRouter(server.RouterConfig{
		AuthHandler:      authHandler,
		AuthMiddleware:   authMiddleware,
		ChatHandler:      chatHandler,
		IntentHandler:    intentHandler,
		KnowledgeHandler: knowledgeHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
