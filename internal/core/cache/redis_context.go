package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/econlens/econlens/internal/core"
	"github.com/econlens/econlens/internal/models"
)

const (
	// MaxEntries caps the per-conversation recent window; pushing past it
	// evicts the oldest entry first.
	MaxEntries = 50
	// TTL is the sliding expiration window, re-armed on every read or write.
	TTL = 30 * time.Minute

	keyPrefix = "chat:context:"
)

// RedisContextCache is the short-term conversational context buffer. It is a
// pure cache: the durable message store remains the source of truth, so
// eviction or expiry only reduces context quality.
type RedisContextCache struct {
	client redis.UniversalClient
}

func NewRedisContextCache(redisURL string) (*RedisContextCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info().Msg("connected to redis context cache")
	return &RedisContextCache{client: client}, nil
}

func (c *RedisContextCache) Close() error {
	return c.client.Close()
}

func contextKey(conversationID string) string {
	return keyPrefix + conversationID
}

// Get returns the cached recent window, oldest first. Absent or expired
// records yield an empty slice. Reading re-arms the sliding TTL.
func (c *RedisContextCache) Get(ctx context.Context, conversationID string) ([]models.CachedMessage, error) {
	key := contextKey(conversationID)
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	msgs, err := DecodeWindow([]byte(raw))
	if err != nil {
		// A corrupt record is useless; drop it rather than fail reads forever.
		log.Warn().Str("conversation", conversationID).Err(err).Msg("dropping corrupt context record")
		_ = c.client.Del(ctx, key).Err()
		return nil, nil
	}

	_ = c.client.Expire(ctx, key, TTL).Err()
	return msgs, nil
}

// Push appends msg to the conversation window, evicting the oldest entry
// once the window exceeds MaxEntries, and re-arms the TTL on the whole record.
func (c *RedisContextCache) Push(ctx context.Context, conversationID string, msg models.CachedMessage) error {
	key := contextKey(conversationID)

	var window []models.CachedMessage
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	if err == nil {
		if window, err = DecodeWindow([]byte(raw)); err != nil {
			log.Warn().Str("conversation", conversationID).Err(err).Msg("resetting corrupt context record")
			window = nil
		}
	}

	window = AppendBounded(window, msg, MaxEntries)

	encoded, err := EncodeWindow(window)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, encoded, TTL).Err()
}

// Reset removes the entire per-conversation record.
func (c *RedisContextCache) Reset(ctx context.Context, conversationID string) error {
	return c.client.Del(ctx, contextKey(conversationID)).Err()
}

// AppendBounded appends msg and trims the window to max entries, FIFO.
func AppendBounded(window []models.CachedMessage, msg models.CachedMessage, max int) []models.CachedMessage {
	window = append(window, msg)
	if len(window) > max {
		window = window[len(window)-max:]
	}
	return window
}

// EncodeWindow serializes the window as a single JSON array, preserving
// order and injecting no extra fields. This is the on-the-wire cache format
// and must round-trip exactly.
func EncodeWindow(window []models.CachedMessage) ([]byte, error) {
	return json.Marshal(window)
}

// DecodeWindow parses the serialized window back into ordered messages.
func DecodeWindow(raw []byte) ([]models.CachedMessage, error) {
	var window []models.CachedMessage
	if err := json.Unmarshal(raw, &window); err != nil {
		return nil, err
	}
	return window, nil
}

var _ core.ContextCache = (*RedisContextCache)(nil)
