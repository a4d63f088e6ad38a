package reasoning

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// hotCache is a TTL-expiring cache of search results fronting the
// brute-force/ANN scan, so repeated similarity queries within a run
// don't re-walk the pattern set. It is a cache only: the pattern log
// and metadata store remain the durable source of truth, so a
// missing/unreachable Redis degrades to a full scan transparently.
type hotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newHotCache(redisURL string) *hotCache {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil
	}
	return &hotCache{client: redis.NewClient(opts), ttl: 5 * time.Minute}
}

func cacheKey(embedding []float32, k int, f Filter) string {
	b, _ := json.Marshal(struct {
		E []float32
		K int
		F Filter
	}{embedding, k, f})
	sum := sha256.Sum256(b)
	return "reasoning:search:" + hex.EncodeToString(sum[:])
}

func (c *hotCache) get(ctx context.Context, key string) ([]ScoredPattern, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var out []ScoredPattern
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *hotCache) set(ctx context.Context, key string, results []ScoredPattern) {
	if c == nil {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, data, c.ttl)
}

func (c *hotCache) close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
