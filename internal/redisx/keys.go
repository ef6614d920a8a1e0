package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{idempotency_key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cache status order: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cart lines: hash cart:{user_id} product_id -> qty, zset cart:{user_id}:order product_id -> first add (unix millis)
	KeyCart      = "cart:%s"
	KeyCartOrder = "cart:%s:order"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemLock    = 30 * time.Second
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLCart        = 7 * 24 * time.Hour
)
