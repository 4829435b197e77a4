package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/storefront-checkout/internal/orders"
)

// CachedStatus is the read-model entry kept per order.
type CachedStatus struct {
	OrderID        string        `json:"order_id"`
	Status         orders.Status `json:"status"`
	TrackingNumber string        `json:"tracking_number,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// StatusCache is a short-lived cache of order status. Postgres stays the
// source of truth; a miss always falls back to it.
type StatusCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStatusCache(rdb redis.Cmdable) *StatusCache {
	return &StatusCache{rdb: rdb, ttl: TTLStatusCache}
}

func (c *StatusCache) Get(ctx context.Context, orderID string) (CachedStatus, bool, error) {
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CachedStatus{}, false, nil
	}
	if err != nil {
		return CachedStatus{}, false, err
	}
	var s CachedStatus
	if err := json.Unmarshal(b, &s); err != nil {
		return CachedStatus{}, false, fmt.Errorf("decode cached status: %w", err)
	}
	return s, true, nil
}

func (c *StatusCache) Set(ctx context.Context, s CachedStatus) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, s.OrderID), b, c.ttl).Err()
}

// setIfNewer writes the status unless a later event has already been
// projected for the order.
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// SetIfNewer stores s unless the cache already holds a status stamped later
// than s.UpdatedAt. Events of one order can arrive on different topics and
// so out of order; the latest one wins.
func (c *StatusCache) SetIfNewer(ctx context.Context, s CachedStatus) (bool, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return false, err
	}
	keys := []string{fmt.Sprintf(KeyOrderStatus, s.OrderID), fmt.Sprintf(KeyOrderStatusAt, s.OrderID)}
	n, err := setIfNewer.Run(ctx, c.rdb, keys, b, s.UpdatedAt.UnixMilli(), c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID), fmt.Sprintf(KeyOrderStatusAt, orderID)).Err()
}
