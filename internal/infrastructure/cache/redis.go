package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"miniloan/internal/config"
	"miniloan/internal/domain/quote"
	"miniloan/internal/session"

	"github.com/redis/go-redis/v9"
)

// Store is the subset of the go-redis client used here.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Store = (*redis.Client)(nil)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address (addr) is not configured")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Redis client connected", "addr", cfg.Addr, "db", cfg.DB)
	return rdb, nil
}

type QuoteCache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

var _ quote.Cache = (*QuoteCache)(nil)

func NewQuoteCache(store Store, ttl time.Duration, logger *slog.Logger) *QuoteCache {
	return &QuoteCache{store: store, ttl: ttl, logger: logger.With("component", "QuoteCache")}
}

func (c *QuoteCache) Get(ctx context.Context, key string) (*quote.Quote, bool, error) {
	raw, err := c.store.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var q quote.Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		c.logger.WarnContext(ctx, "Discarding unreadable cached quote", "key", key, "error", err)
		return nil, false, nil
	}
	return &q, true, nil
}

func (c *QuoteCache) Set(ctx context.Context, key string, q *quote.Quote) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	if err := c.store.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

const revokedSessionPrefix = "session:revoked:"

type SessionDenylist struct {
	store Store
	now   func() time.Time
}

var _ session.Denylist = (*SessionDenylist)(nil)

func NewSessionDenylist(store Store) *SessionDenylist {
	return &SessionDenylist{store: store, now: time.Now}
}

// Revoke keeps the entry only as long as the token could still be presented.
func (d *SessionDenylist) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.store.Set(ctx, revokedSessionPrefix+sessionID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session %s: %w", sessionID, err)
	}
	return nil
}

func (d *SessionDenylist) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := d.store.Exists(ctx, revokedSessionPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("check session %s: %w", sessionID, err)
	}
	return n > 0, nil
}
