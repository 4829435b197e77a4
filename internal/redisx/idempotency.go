package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInFlight means another request holding the same key has not finished.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

const idemPending = "pending"

// Idempotency maps a client-supplied key to the order it created.
type Idempotency struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewIdempotency(rdb redis.Cmdable) *Idempotency {
	return &Idempotency{rdb: rdb, ttl: TTLIdempotency}
}

// Begin claims key. It returns started=true when the caller owns the key and
// must later Complete or Abort it, or the order ID a previous request
// created. ErrInFlight if the previous request is still running.
func (i *Idempotency) Begin(ctx context.Context, key string) (orderID string, started bool, err error) {
	k := fmt.Sprintf(KeyIdemCheckout, key)
	ok, err := i.rdb.SetNX(ctx, k, idemPending, i.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := i.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls
		return i.Begin(ctx, key)
	}
	if err != nil {
		return "", false, err
	}
	if v == idemPending {
		return "", false, ErrInFlight
	}
	return v, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, key, orderID string) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemCheckout, key), orderID, i.ttl).Err()
}

// Abort releases key so the client can retry a failed checkout.
func (i *Idempotency) Abort(ctx context.Context, key string) error {
	return i.rdb.Del(ctx, fmt.Sprintf(KeyIdemCheckout, key)).Err()
}
