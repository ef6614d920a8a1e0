package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const idemPending = "pending"

var ErrInProgress = errors.New("redisx: request with this idempotency key is in progress")

// Idempotency remembers which order an Idempotency-Key produced.
type Idempotency struct{ RDB *redis.Client }

// Begin claims key. When the key was already used it returns the stored
// order id, or ErrInProgress while the first request is still running.
func (i *Idempotency) Begin(ctx context.Context, key string) (orderID string, claimed bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, key)
	ok, err := i.RDB.SetNX(ctx, k, idemPending, TTLIdemLock).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := i.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// lock expired between SETNX and GET; caller may retry
		return "", false, ErrInProgress
	}
	if err != nil {
		return "", false, err
	}
	if v == idemPending {
		return "", false, ErrInProgress
	}
	return v, false, nil
}

func (i *Idempotency) Remember(ctx context.Context, key, orderID string) error {
	return i.RDB.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), orderID, TTLIdempotency).Err()
}

// Release drops a claim whose request failed so the client can retry.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.RDB.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Err()
}
