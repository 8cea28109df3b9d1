package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hiuminee/carebot-backend/internal/llm"
	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/utils"
)

// HistoryCache keeps the recent-messages window for a conversation so the
// pipeline does not hit Postgres on every turn. All methods are best-effort:
// a cache failure is logged and treated as a miss, never surfaced.
type HistoryCache interface {
	Get(ctx context.Context, conversationID uuid.UUID) ([]llm.ChatMessage, bool)
	Set(ctx context.Context, conversationID uuid.UUID, history []llm.ChatMessage)
	Invalidate(ctx context.Context, conversationID uuid.UUID)
	Close() error
}

type historyCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewHistoryCache(log *logger.Logger) (HistoryCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttlSeconds := utils.GetEnvAsInt("HISTORY_CACHE_TTL_SECONDS", 300, log)
	return &historyCache{
		log: log.With("service", "RedisHistoryCache"),
		rdb: rdb,
		ttl: time.Duration(ttlSeconds) * time.Second,
	}, nil
}

func historyKey(conversationID uuid.UUID) string {
	return "carebot:history:" + conversationID.String()
}

func (c *historyCache) Get(ctx context.Context, conversationID uuid.UUID) ([]llm.ChatMessage, bool) {
	raw, err := c.rdb.Get(ctx, historyKey(conversationID)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("history cache get failed", "conversation_id", conversationID, "error", err)
		}
		return nil, false
	}
	var history []llm.ChatMessage
	if err := json.Unmarshal(raw, &history); err != nil {
		c.log.Warn("history cache entry corrupt", "conversation_id", conversationID, "error", err)
		return nil, false
	}
	return history, true
}

func (c *historyCache) Set(ctx context.Context, conversationID uuid.UUID, history []llm.ChatMessage) {
	raw, err := json.Marshal(history)
	if err != nil {
		c.log.Warn("history cache encode failed", "conversation_id", conversationID, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, historyKey(conversationID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("history cache set failed", "conversation_id", conversationID, "error", err)
	}
}

func (c *historyCache) Invalidate(ctx context.Context, conversationID uuid.UUID) {
	if err := c.rdb.Del(ctx, historyKey(conversationID)).Err(); err != nil {
		c.log.Warn("history cache invalidate failed", "conversation_id", conversationID, "error", err)
	}
}

func (c *historyCache) Close() error {
	return c.rdb.Close()
}

// NoopHistoryCache is wired when no Redis address is configured; every read
// is a miss and writes are dropped.
type NoopHistoryCache struct{}

func (NoopHistoryCache) Get(context.Context, uuid.UUID) ([]llm.ChatMessage, bool) { return nil, false }
func (NoopHistoryCache) Set(context.Context, uuid.UUID, []llm.ChatMessage)        {}
func (NoopHistoryCache) Invalidate(context.Context, uuid.UUID)                    {}
func (NoopHistoryCache) Close() error                                             { return nil }
