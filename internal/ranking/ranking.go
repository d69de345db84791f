// Package ranking counts image detail views in Redis and keeps a sorted set
// of the most viewed images.
//
// Redis is optional. A Counter built with a nil client answers every call
// with zero values, so the site keeps working without it.
package ranking

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// REDIS KEYS:
//
//	image:<id>:views   STRING  per-image total, INCR
//	image_ranking      ZSET    member <id>, score = views, ZINCRBY
//
// The per-image counter and the sorted-set score hold the same number.
// Both are kept so a single image's total is one GET, while the top-N
// list is one ZREVRANGE with no scan over the counters.
const rankingKey = "image_ranking"

func viewsKey(imageID string) string {
	return fmt.Sprintf("image:%s:views", imageID)
}

// Counter tracks per-image view totals.
type Counter struct {
	rdb *redis.Client
}

// NewCounter wraps a redis client; rdb may be nil.
func NewCounter(rdb *redis.Client) *Counter {
	return &Counter{rdb: rdb}
}

// Enabled reports whether views are actually being recorded.
//
// Safe on a nil *Counter as well as on a Counter with a nil client, so
// callers never need their own nil checks.
func (c *Counter) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Incr records one view and returns the new total.
//
// Both writes go through a MULTI/EXEC pipeline: one round trip, and no
// reader sees the counter bumped without the sorted set (or the reverse).
func (c *Counter) Incr(ctx context.Context, imageID string) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}

	pipe := c.rdb.TxPipeline()
	total := pipe.Incr(ctx, viewsKey(imageID))
	pipe.ZIncrBy(ctx, rankingKey, 1, imageID)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("ranking: recording view of %s: %w", imageID, err)
	}
	return total.Val(), nil
}

// Views returns the total views of an image.
func (c *Counter) Views(ctx context.Context, imageID string) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}

	// redis.Nil means the key does not exist: never viewed.
	n, err := c.rdb.Get(ctx, viewsKey(imageID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ranking: reading views of %s: %w", imageID, err)
	}
	return n, nil
}

// Top returns up to n image IDs, most viewed first.
//
// ZREVRANGE 0 n-1 is inclusive on both ends, hence n-1. Ties keep Redis'
// order (reverse lexicographic by member).
func (c *Counter) Top(ctx context.Context, n int) ([]string, error) {
	if !c.Enabled() || n <= 0 {
		return []string{}, nil
	}

	ids, err := c.rdb.ZRevRange(ctx, rankingKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("ranking: reading top %d: %w", n, err)
	}
	return ids, nil
}
