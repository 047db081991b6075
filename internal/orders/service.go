// Package orders drives the order lifecycle: creation from a cart or an
// explicit line list, status transitions, and cancellation with stock
// release.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabricmart/go-fabric-market/internal/inventory"
	"github.com/fabricmart/go-fabric-market/internal/market"
)

type Repo interface {
	Insert(ctx context.Context, o *market.Order) error
	Get(ctx context.Context, id string) (*market.Order, error)
	// Save persists the mutable fields: status, payment status, tracking
	// number, delivered timestamp, cancel reason.
	Save(ctx context.Context, o *market.Order) error
}

// Carts is the slice of the cart subsystem order creation needs: the snapshot
// to convert and the best-effort clear afterwards.
type Carts interface {
	Snapshot(ctx context.Context, customerID string) ([]market.CartItem, error)
	Clear(ctx context.Context, customerID string) error
}

// Notifier dispatches fire-and-forget side effects. Implementations must not
// block and must never surface failure to the caller.
type Notifier interface {
	OrderPlaced(o *market.Order)
	OrderCancelled(o *market.Order)
	OrderShipped(o *market.Order)
}

type Line struct {
	FabricID string
	Qty      int
}

type CreateInput struct {
	// Lines, when empty, are taken from the customer's cart.
	Lines           []Line
	ShippingAddress string
	ShippingMethod  market.ShippingMethod
	PaymentMethod   string
}

type Service struct {
	Ledger          inventory.Ledger
	Repo            Repo
	Carts           Carts
	Notify          Notifier
	Log             *zap.Logger
	TrackingBaseURL string
}

// Create converts the request into a durable order. All stock reservations
// are all-or-nothing: a failure on any line releases every line already
// reserved in this request before the error is returned.
func (s *Service) Create(ctx context.Context, p market.Principal, in CreateInput) (*market.Order, error) {
	lines := in.Lines
	fromCart := false
	if len(lines) == 0 {
		snap, err := s.Carts.Snapshot(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for _, it := range snap {
			lines = append(lines, Line{FabricID: it.FabricID, Qty: it.Qty})
		}
		fromCart = true
	}
	if len(lines) == 0 {
		return nil, market.ErrEmptyOrder
	}
	rate, ok := shippingRates[in.ShippingMethod]
	if !ok {
		return nil, fmt.Errorf("%w: unknown shipping method %q", market.ErrValidation, in.ShippingMethod)
	}
	for _, l := range lines {
		if l.Qty < 1 {
			return nil, fmt.Errorf("%w: qty must be at least 1", market.ErrValidation)
		}
	}

	items, subtotal, err := s.reserveAll(ctx, lines)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	o := &market.Order{
		ID:                uuid.NewString(),
		CustomerID:        p.ID,
		Items:             items,
		SubtotalCents:     subtotal,
		ShippingCents:     rate.CostCents,
		TaxCents:          taxFor(subtotal),
		Status:            market.StatusPending,
		PaymentStatus:     market.PaymentPaid, // payment is confirmed upstream before creation
		PaymentMethod:     in.PaymentMethod,
		ShippingMethod:    in.ShippingMethod,
		ShippingAddress:   in.ShippingAddress,
		EstimatedDelivery: now.AddDate(0, 0, rate.DeliveryDays),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	o.TotalCents = o.SubtotalCents + o.ShippingCents + o.TaxCents

	if err := s.Repo.Insert(ctx, o); err != nil {
		s.releaseAll(ctx, items)
		return nil, err
	}

	// Best-effort cleanup: the order stands even if the cart clear fails.
	if fromCart {
		if err := s.Carts.Clear(ctx, p.ID); err != nil {
			s.Log.Warn("cart clear after order failed",
				zap.String("order_id", o.ID),
				zap.String("customer_id", p.ID),
				zap.Error(err))
		}
	}

	s.Notify.OrderPlaced(o)
	return o, nil
}

// reserveAll walks the lines, freezing unit prices as it goes. On any
// failure it releases the lines already reserved in this call.
func (s *Service) reserveAll(ctx context.Context, lines []Line) ([]market.OrderItem, int, error) {
	items := make([]market.OrderItem, 0, len(lines))
	subtotal := 0
	for _, l := range lines {
		price, err := s.Ledger.Reserve(ctx, l.FabricID, l.Qty)
		if err != nil {
			s.releaseAll(ctx, items)
			return nil, 0, err
		}
		it := market.OrderItem{
			FabricID:      l.FabricID,
			Qty:           l.Qty,
			PriceCents:    price,
			SubtotalCents: price * l.Qty,
		}
		items = append(items, it)
		subtotal += it.SubtotalCents
	}
	return items, subtotal, nil
}

func (s *Service) releaseAll(ctx context.Context, items []market.OrderItem) {
	for _, it := range items {
		if err := s.Ledger.Release(ctx, it.FabricID, it.Qty); err != nil {
			s.Log.Error("reservation rollback failed",
				zap.String("fabric_id", it.FabricID),
				zap.Int("qty", it.Qty),
				zap.Error(err))
		}
	}
}

// Cancel is permitted only while the order is Pending or Confirmed. The
// stock-release loop completes synchronously before the order is marked
// cancelled, so a cancelled order always implies restored stock.
func (s *Service) Cancel(ctx context.Context, p market.Principal, orderID, reason string) (*market.Order, error) {
	o, err := s.Repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != p.ID && !p.IsAdmin() {
		return nil, market.ErrUnauthorized
	}
	if !market.CanCancel(o.Status) {
		return nil, fmt.Errorf("cannot cancel order in status %s: %w", o.Status, market.ErrInvalidTransition)
	}

	for _, it := range o.Items {
		if err := s.Ledger.Release(ctx, it.FabricID, it.Qty); err != nil {
			return nil, fmt.Errorf("release fabric %s: %w", it.FabricID, err)
		}
	}

	o.Status = market.StatusCancelled
	o.CancelReason = reason
	o.UpdatedAt = time.Now().UTC()
	if err := s.Repo.Save(ctx, o); err != nil {
		return nil, err
	}
	s.Notify.OrderCancelled(o)
	return o, nil
}

// SetStatus is the admin/shop path for moving an order through its
// lifecycle. Cancellation must go through Cancel so stock is released.
func (s *Service) SetStatus(ctx context.Context, p market.Principal, orderID string, to market.Status) (*market.Order, error) {
	if p.Role != market.RoleAdmin && p.Role != market.RoleShop {
		return nil, market.ErrUnauthorized
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", market.ErrValidation, to)
	}
	if to == market.StatusCancelled {
		return nil, fmt.Errorf("use the cancel operation: %w", market.ErrInvalidTransition)
	}

	o, err := s.Repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == market.StatusCancelled || o.Status == market.StatusRefunded {
		return nil, fmt.Errorf("order is %s: %w", o.Status, market.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	shippedNow := false
	switch to {
	case market.StatusShipped:
		// Idempotent: re-entering Shipped keeps the existing number.
		if o.TrackingNumber == "" {
			o.TrackingNumber = newTrackingNumber(now)
			shippedNow = true
		}
	case market.StatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	}
	o.Status = to
	o.UpdatedAt = now

	if err := s.Repo.Save(ctx, o); err != nil {
		return nil, err
	}
	if shippedNow {
		s.Notify.OrderShipped(o)
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, p market.Principal, orderID string) (*market.Order, error) {
	o, err := s.Repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != p.ID && !p.IsAdmin() && p.Role != market.RoleShop {
		return nil, market.ErrUnauthorized
	}
	return o, nil
}

// TrackingURL builds the customer-facing link for an assigned number.
func (s *Service) TrackingURL(o *market.Order) string {
	if o.TrackingNumber == "" {
		return ""
	}
	return s.TrackingBaseURL + "/" + o.TrackingNumber
}
