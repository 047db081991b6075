package market

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCancelled = "OrderCancelled"
	EventOrderShipped   = "OrderShipped"
	EventReviewAdded    = "ReviewAdded"
	EventEmailRequested = "EmailRequested"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// ---- payload types per event ----

type OrderLine struct {
	FabricID   string `json:"fabric_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

type OrderPlacedPayload struct {
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Items      []OrderLine `json:"items"`
	TotalCents int         `json:"total_cents"`
}

type OrderCancelledPayload struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Reason     string `json:"reason"`
}

type OrderShippedPayload struct {
	OrderID        string `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`
}

type ReviewAddedPayload struct {
	ReviewID   string  `json:"review_id"`
	FabricID   string  `json:"fabric_id"`
	ShopID     string  `json:"shop_id"`
	ReviewerID string  `json:"reviewer_id"`
	Rating     int     `json:"rating"`
	NewFabric  float64 `json:"new_fabric_rating"`
}

type EmailRequestedPayload struct {
	Recipient string `json:"recipient"`
	Kind      string `json:"kind"` // order_confirmation | order_cancelled
	OrderID   string `json:"order_id,omitempty"`
}
