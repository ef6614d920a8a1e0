package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/ariefcatur/go-order-settlement/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps quantities in a hash and first-add order in a sorted set.
type RedisStore struct{ RDB *redis.Client }

func keys(userID string) (string, string) {
	return fmt.Sprintf(redisx.KeyCart, userID), fmt.Sprintf(redisx.KeyCartOrder, userID)
}

func (s *RedisStore) Add(ctx context.Context, userID, productID string, qty int) (int, error) {
	hk, zk := keys(userID)
	var incr *redis.IntCmd
	_, err := s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, hk, productID, int64(qty))
		p.ZAddNX(ctx, zk, redis.Z{Score: float64(time.Now().UnixMilli()), Member: productID})
		p.Expire(ctx, hk, redisx.TTLCart)
		p.Expire(ctx, zk, redisx.TTLCart)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (s *RedisStore) Quantity(ctx context.Context, userID, productID string) (int, error) {
	hk, _ := keys(userID)
	n, err := s.RDB.HGet(ctx, hk, productID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *RedisStore) Lines(ctx context.Context, userID string) ([]orders.CartLine, error) {
	hk, zk := keys(userID)
	var (
		order *redis.ZSliceCmd
		qty   *redis.MapStringStringCmd
	)
	_, err := s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		order = p.ZRangeWithScores(ctx, zk, 0, -1)
		qty = p.HGetAll(ctx, hk)
		return nil
	})
	if err != nil {
		return nil, err
	}

	q := qty.Val()
	out := make([]orders.CartLine, 0, len(q))
	for _, z := range order.Val() {
		pid, _ := z.Member.(string)
		n, err := strconv.Atoi(q[pid])
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, orders.CartLine{
			UserID:    userID,
			ProductID: pid,
			Quantity:  n,
			AddedAt:   time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return out, nil
}

func (s *RedisStore) Remove(ctx context.Context, userID, productID string) error {
	hk, zk := keys(userID)
	_, err := s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, hk, productID)
		p.ZRem(ctx, zk, productID)
		return nil
	})
	return err
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	hk, zk := keys(userID)
	return s.RDB.Del(ctx, hk, zk).Err()
}
