// Package cache provides a content-addressable cache for extracted
// question lists, keyed by a hash of the raw document text. The cache is
// advisory: failures are logged and treated as misses, never surfaced as
// pipeline errors.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"rfp-pilot/backend/internal/logging"
	"rfp-pilot/backend/pkg/models"
)

const keyPrefix = "rfpqc:"

// entry is the stored cache value. Entries are immutable once written.
type entry struct {
	Questions      []string  `json:"questions"`
	CachedAt       time.Time `json:"cached_at"`
	QuestionCount  int       `json:"question_count"`
	DocumentLength int       `json:"document_length"`
}

// QuestionCache caches extracted question lists in Redis.
type QuestionCache struct {
	rdb    *redis.Client
	logger *logging.Logger
}

// NewQuestionCache creates a new QuestionCache.
func NewQuestionCache(rdb *redis.Client, logger *logging.Logger) *QuestionCache {
	return &QuestionCache{rdb: rdb, logger: logger}
}

// cacheKey derives the storage key for a document. The SHA-256 hash is
// truncated to 16 hex characters for key brevity; content is only ever
// reproduced from the original text, never looked up by prefix alone.
func cacheKey(documentText string) string {
	sum := sha256.Sum256([]byte(documentText))
	return keyPrefix + hex.EncodeToString(sum[:])[:16]
}

// Get retrieves the cached question list for a document. The second
// return value reports whether the lookup was a hit.
func (c *QuestionCache) Get(ctx context.Context, documentText string) ([]string, bool) {
	key := cacheKey(documentText)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.logger.Debug("cache miss", "key", key)
		return nil, false
	}
	if err != nil {
		c.logger.Error("cache read failed", "key", key, "error", err)
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Error("cache entry corrupt", "key", key, "error", err)
		return nil, false
	}

	c.logger.Debug("cache hit", "key", key, "questions", len(e.Questions), "cached_at", e.CachedAt)
	return e.Questions, true
}

// Set stores the question list for a document. Returns true on success.
func (c *QuestionCache) Set(ctx context.Context, documentText string, questions []string) bool {
	key := cacheKey(documentText)

	raw, err := json.Marshal(entry{
		Questions:      questions,
		CachedAt:       time.Now().UTC(),
		QuestionCount:  len(questions),
		DocumentLength: len(documentText),
	})
	if err != nil {
		c.logger.Error("cache encode failed", "key", key, "error", err)
		return false
	}

	if err := c.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		c.logger.Error("cache write failed", "key", key, "error", err)
		return false
	}

	c.logger.Debug("cache saved", "key", key, "questions", len(questions))
	return true
}

// Clear removes all cached question lists and returns the number removed.
func (c *QuestionCache) Clear(ctx context.Context) int {
	keys, err := c.scanKeys(ctx)
	if err != nil {
		c.logger.Error("cache clear scan failed", "error", err)
		return 0
	}
	if len(keys) == 0 {
		return 0
	}

	removed, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		c.logger.Error("cache clear failed", "error", err)
	}
	return int(removed)
}

// Stats returns the entry count and aggregate stored size of the cache.
func (c *QuestionCache) Stats(ctx context.Context) models.CacheStats {
	stats := models.CacheStats{}

	keys, err := c.scanKeys(ctx)
	if err != nil {
		c.logger.Error("cache stats scan failed", "error", err)
		return stats
	}

	stats.EntryCount = len(keys)
	for _, key := range keys {
		size, err := c.rdb.StrLen(ctx, key).Result()
		if err != nil {
			continue
		}
		stats.TotalSizeBytes += size
	}
	return stats
}

func (c *QuestionCache) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}
