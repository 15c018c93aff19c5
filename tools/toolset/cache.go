package toolset

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/deepresearch/internal/metrics"
)

const keyPrefix = "deepresearch:tool:"

// Cached stores successful tool answers in Redis. Sentinel answers and errors
// are never cached, and Redis failures fall through to the wrapped Toolset.
type Cached struct {
	next   Toolset
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewCached(next Toolset, rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, rdb: rdb, ttl: ttl, logger: logger.Named("toolcache")}
}

func (c *Cached) Search(ctx context.Context, query string, limit int) (string, error) {
	key := CacheKey("search", query+"\x00"+strconv.Itoa(limit))
	return c.through(ctx, "search", key, func() (string, error) {
		return c.next.Search(ctx, query, limit)
	})
}

func (c *Cached) Fetch(ctx context.Context, url string) (string, error) {
	return c.through(ctx, "fetch", CacheKey("fetch", url), func() (string, error) {
		return c.next.Fetch(ctx, url)
	})
}

func (c *Cached) through(ctx context.Context, tool, key string, call func() (string, error)) (string, error) {
	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		metrics.ToolCacheLookups.WithLabelValues(tool, "hit").Inc()
		return cached, nil
	case errors.Is(err, redis.Nil):
		metrics.ToolCacheLookups.WithLabelValues(tool, "miss").Inc()
	default:
		metrics.ToolCacheLookups.WithLabelValues(tool, "error").Inc()
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	out, err := call()
	if err != nil || IsSentinel(out) {
		return out, err
	}
	if err := c.rdb.Set(ctx, key, out, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

// CacheKey is deepresearch:tool:{tool}:{sha1(input)}.
func CacheKey(tool, input string) string {
	sum := sha1.Sum([]byte(input))
	return keyPrefix + tool + ":" + hex.EncodeToString(sum[:])
}
