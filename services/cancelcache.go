package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// CancelledCountCache caches per-period cancelled-reservation counts. It is
// an explicit, injected collaborator rather than ambient module state so
// tests can swap the client or disable caching entirely (nil client means
// every lookup recomputes).
type CancelledCountCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

const DefaultCancelledCountTTL = 10 * time.Minute

func NewCancelledCountCache(client redis.Cmdable, ttl time.Duration) *CancelledCountCache {
	if ttl <= 0 {
		ttl = DefaultCancelledCountTTL
	}
	return &CancelledCountCache{client: client, ttl: ttl}
}

func cancelledKey(propertyID uint, start, end time.Time) string {
	return fmt.Sprintf("stmt:cancelled:%d:%s:%s", propertyID, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// Count returns the cached count for the property/period, computing and
// storing it on a miss.
func (c *CancelledCountCache) Count(ctx context.Context, propertyID uint, start, end time.Time, compute func() (int, error)) (int, error) {
	if c == nil || c.client == nil {
		return compute()
	}

	key := cancelledKey(propertyID, start, end)
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		if n, convErr := strconv.Atoi(cached); convErr == nil {
			return n, nil
		}
	}

	n, err := compute()
	if err != nil {
		return 0, err
	}
	c.client.Set(ctx, key, strconv.Itoa(n), c.ttl)
	return n, nil
}

// Invalidate drops the cached count after something touches the period's
// reservations.
func (c *CancelledCountCache) Invalidate(ctx context.Context, propertyID uint, start, end time.Time) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, cancelledKey(propertyID, start, end))
}
