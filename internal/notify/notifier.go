// Package notify dispatches side effects over kafka. Everything here is
// fire-and-forget: the async producer detaches delivery from the request
// path, and delivery failure never reaches the caller.
package notify

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/fabricmart/go-fabric-market/internal/kafka"
	"github.com/fabricmart/go-fabric-market/internal/market"
)

type Notifier struct {
	Placed    *kafkax.Producer // fabric.order.placed
	Cancelled *kafkax.Producer // fabric.order.cancelled
	Reviews   *kafkax.Producer // fabric.review.added
	Email     *kafkax.Producer // fabric.notify.email
	Service   string
}

func (n *Notifier) envelope(eventType, correlationID string, payload any) []byte {
	return kafkax.MustMarshal(market.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	})
}

func headers(eventType string) []kafkago.Header {
	return []kafkago.Header{
		{Key: "x-event-type", Value: []byte(eventType)},
		{Key: "x-event-version", Value: []byte("1")},
	}
}

func (n *Notifier) OrderPlaced(o *market.Order) {
	lines := make([]market.OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, market.OrderLine{
			FabricID: it.FabricID, Qty: it.Qty, PriceCents: it.PriceCents,
		})
	}
	n.Placed.Publish(market.PartitionKey(o.ID),
		n.envelope(market.EventOrderPlaced, o.ID, market.OrderPlacedPayload{
			OrderID:    o.ID,
			CustomerID: o.CustomerID,
			Items:      lines,
			TotalCents: o.TotalCents,
		}),
		headers(market.EventOrderPlaced)...)

	n.Email.Publish(market.PartitionKey(o.ID),
		n.envelope(market.EventEmailRequested, o.ID, market.EmailRequestedPayload{
			Recipient: o.CustomerID,
			Kind:      "order_confirmation",
			OrderID:   o.ID,
		}),
		headers(market.EventEmailRequested)...)
}

func (n *Notifier) OrderCancelled(o *market.Order) {
	n.Cancelled.Publish(market.PartitionKey(o.ID),
		n.envelope(market.EventOrderCancelled, o.ID, market.OrderCancelledPayload{
			OrderID:    o.ID,
			CustomerID: o.CustomerID,
			Reason:     o.CancelReason,
		}),
		headers(market.EventOrderCancelled)...)

	n.Email.Publish(market.PartitionKey(o.ID),
		n.envelope(market.EventEmailRequested, o.ID, market.EmailRequestedPayload{
			Recipient: o.CustomerID,
			Kind:      "order_cancelled",
			OrderID:   o.ID,
		}),
		headers(market.EventEmailRequested)...)
}

func (n *Notifier) OrderShipped(o *market.Order) {
	n.Placed.Publish(market.PartitionKey(o.ID),
		n.envelope(market.EventOrderShipped, o.ID, market.OrderShippedPayload{
			OrderID:        o.ID,
			TrackingNumber: o.TrackingNumber,
		}),
		headers(market.EventOrderShipped)...)
}

func (n *Notifier) ReviewAdded(r *market.Review, shopID string, newFabricRating float64) {
	n.Reviews.Publish(market.PartitionKey(r.FabricID),
		n.envelope(market.EventReviewAdded, r.FabricID, market.ReviewAddedPayload{
			ReviewID:   r.ID,
			FabricID:   r.FabricID,
			ShopID:     shopID,
			ReviewerID: r.ReviewerID,
			Rating:     r.Rating,
			NewFabric:  newFabricRating,
		}),
		headers(market.EventReviewAdded)...)
}
