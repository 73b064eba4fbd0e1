package regional

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheClient is the subset of *redis.Client the cache uses. Tests inject an
// in-memory implementation.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type cachedSource struct {
	inner  Source
	client CacheClient
	ttl    time.Duration
	logger *slog.Logger
}

// WithCache puts a Redis read-through cache in front of inner. Only live
// (StatusOK) results are cached, so a fallback never outlives the outage that
// caused it. Redis errors are logged and bypassed.
func WithCache(inner Source, client CacheClient, ttl time.Duration, logger *slog.Logger) Source {
	return &cachedSource{inner: inner, client: client, ttl: ttl, logger: logger}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func (c *cachedSource) Fetch(ctx context.Context, location string) (Result, error) {
	key := cacheKey(location)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached Result
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil && cached.Status == StatusOK {
			c.logger.Debug("regional: cache hit", "location", location)
			return cached, nil
		}
		c.logger.Warn("regional: discarding unreadable cache entry", "key", key)
	case errors.Is(err, redis.Nil):
		// miss
	default:
		c.logger.Warn("regional: cache read failed", "key", key, "error", err)
	}

	result, err := c.inner.Fetch(ctx, location)
	if err != nil {
		return result, err
	}
	if result.Status != StatusOK {
		return result, nil
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("regional: cache encode failed", "key", key, "error", err)
		return result, nil
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.logger.Warn("regional: cache write failed", "key", key, "error", err)
	}
	return result, nil
}

// cacheKey normalises a location so "NY", " ny " and "Ny" share an entry.
func cacheKey(location string) string {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		loc = "_national"
	}
	return "regional:" + loc
}
