package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/ragsvc/internal/model"
	"github.com/kart-io/ragsvc/pkg/utils/json"
)

// QueryCacheConfig configures the query result cache.
type QueryCacheConfig struct {
	Enabled   bool
	TTL       time.Duration
	KeyPrefix string
}

// QueryCache caches query results in Redis, keyed by a hash of the
// question. Cache failures are logged and treated as misses so the
// query path never depends on Redis availability.
type QueryCache struct {
	redis  *goredis.Client
	config *QueryCacheConfig
}

// NewQueryCache creates a QueryCache. A nil Redis client disables the
// cache regardless of configuration.
func NewQueryCache(redis *goredis.Client, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "rag:query:",
		}
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

// Enabled reports whether the cache is active.
func (c *QueryCache) Enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// Get returns the cached result for the question, or nil on a miss.
func (c *QueryCache) Get(ctx context.Context, question string, topK int) *model.QueryResult {
	if !c.Enabled() {
		return nil
	}

	key := c.cacheKey(question, topK)

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("failed to read query cache", "key", key, "error", err.Error())
		}
		return nil
	}

	var result model.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("dropping corrupt cache entry", "key", key, "error", err.Error())
		_ = c.redis.Del(ctx, key).Err()
		return nil
	}
	return &result
}

// Set stores a query result.
func (c *QueryCache) Set(ctx context.Context, question string, topK int, result *model.QueryResult) {
	if !c.Enabled() {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("failed to marshal query result for cache", "error", err.Error())
		return
	}

	key := c.cacheKey(question, topK)
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to write query cache", "key", key, "error", err.Error())
	}
}

// cacheKey hashes the question and topK into a fixed-size cache key.
// Answers for different topK values are cached independently.
func (c *QueryCache) cacheKey(question string, topK int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", topK, question)))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}
