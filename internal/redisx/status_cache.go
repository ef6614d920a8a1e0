package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type CachedStatus struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusCache is a read-through cache of order status; the order store stays
// the source of truth.
type StatusCache struct{ RDB *redis.Client }

func (c *StatusCache) Get(ctx context.Context, orderID string) (CachedStatus, bool, error) {
	s, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return CachedStatus{}, false, nil
	}
	if err != nil {
		return CachedStatus{}, false, err
	}
	var cs CachedStatus
	if err := json.Unmarshal([]byte(s), &cs); err != nil {
		return CachedStatus{}, false, fmt.Errorf("decode cached status: %w", err)
	}
	return cs, true, nil
}

// Set never moves the cache backwards in time.
func (c *StatusCache) Set(ctx context.Context, orderID string, cs CachedStatus) error {
	key := fmt.Sprintf(KeyOrderStatus, orderID)
	b, err := json.Marshal(cs)
	if err != nil {
		return err
	}
	return c.RDB.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var old CachedStatus
			if json.Unmarshal([]byte(cur), &old) == nil && old.UpdatedAt.After(cs.UpdatedAt) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, TTLStatusCache)
			return nil
		})
		return err
	}, key)
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}
