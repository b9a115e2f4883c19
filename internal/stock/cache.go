package stock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisValuationCache memoizes weighted-average costs in Redis. Correctness
// never depends on it: the log is recomputed on a miss, and qualifying
// writes drop the key before the write returns.
type RedisValuationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisValuationCache builds the cache.
func NewRedisValuationCache(client *redis.Client, ttl time.Duration) *RedisValuationCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisValuationCache{client: client, ttl: ttl}
}

func valuationKey(businessID, productID int64) string {
	return fmt.Sprintf("stock:avgcost:%d:%d", businessID, productID)
}

// Get returns the memoized cost if present.
func (c *RedisValuationCache) Get(ctx context.Context, businessID, productID int64) (int64, bool, error) {
	raw, err := c.client.Get(ctx, valuationKey(businessID, productID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	cost, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return cost, true, nil
}

// Set stores a computed cost.
func (c *RedisValuationCache) Set(ctx context.Context, businessID, productID, cost int64) error {
	return c.client.Set(ctx, valuationKey(businessID, productID), strconv.FormatInt(cost, 10), c.ttl).Err()
}

// Invalidate drops the memoized cost after a qualifying write.
func (c *RedisValuationCache) Invalidate(ctx context.Context, businessID, productID int64) error {
	return c.client.Del(ctx, valuationKey(businessID, productID)).Err()
}
