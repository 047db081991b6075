package redisx

import "time"

const (
	// Cache order status: order_status:{order_id} -> {"status":"..."}
	KeyOrderStatus = "order_status:%s"

	// Cache shop rating: shop_rating:{shop_id} -> {"rating":4,"total_reviews":3}
	KeyShopRating = "shop_rating:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLRatingCache = 10 * time.Minute
	TTLDedup       = 48 * time.Hour
)
