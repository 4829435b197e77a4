package redisx

import "time"

const (
	// checkout idempotency: idem:checkout:{idempotency_key} -> order_id | "pending"
	KeyIdemCheckout = "idem:checkout:%s"

	// order status cache: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// projected event time of the cached status, unix millis: order_status_at:{order_id}
	KeyOrderStatusAt = "order_status_at:%s"

	// projector dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
