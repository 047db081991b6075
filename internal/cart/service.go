// Package cart maintains each customer's mutable working set and converts it
// into order line snapshots at checkout.
//
// Cart prices are not frozen: every mutation refreshes a line's unit price to
// the fabric's current price and re-validates quantity against current stock.
// Only order items freeze prices.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/fabricmart/go-fabric-market/internal/market"
)

type Store interface {
	// Get returns the customer's cart, creating an empty one lazily on
	// first access.
	Get(ctx context.Context, customerID string) (*market.Cart, error)
	Save(ctx context.Context, c *market.Cart) error
}

// Catalog is the read-side view of fabrics the cart needs for validation.
type Catalog interface {
	// Fabric returns an active fabric or market.ErrNotFound.
	Fabric(ctx context.Context, id string) (*market.Fabric, error)
}

type Service struct {
	Store   Store
	Catalog Catalog
}

func (s *Service) Get(ctx context.Context, customerID string) (*market.Cart, error) {
	return s.Store.Get(ctx, customerID)
}

// Add puts qty units of a fabric in the cart. Adding a fabric already present
// increases that line's quantity instead of creating a duplicate line.
func (s *Service) Add(ctx context.Context, customerID, fabricID string, qty int) (*market.Cart, error) {
	if qty < 1 {
		return nil, fmt.Errorf("%w: qty must be at least 1", market.ErrValidation)
	}
	f, err := s.Catalog.Fabric(ctx, fabricID)
	if err != nil {
		return nil, err
	}
	c, err := s.Store.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}

	newQty := qty
	if i := lineIndex(c, fabricID); i >= 0 {
		newQty += c.Items[i].Qty
	}
	if newQty > f.Stock {
		return nil, fmt.Errorf("fabric %s: need %d, have %d: %w",
			fabricID, newQty, f.Stock, market.ErrInsufficientStock)
	}

	if i := lineIndex(c, fabricID); i >= 0 {
		c.Items[i].Qty = newQty
		c.Items[i].PriceCents = f.PriceCents
	} else {
		c.Items = append(c.Items, market.CartItem{
			FabricID:   fabricID,
			Qty:        newQty,
			PriceCents: f.PriceCents,
		})
	}
	return s.commit(ctx, c)
}

// UpdateQuantity replaces a line's quantity, capped by the fabric's current
// stock, and refreshes the line's unit price.
func (s *Service) UpdateQuantity(ctx context.Context, customerID, fabricID string, qty int) (*market.Cart, error) {
	if qty < 1 {
		return nil, fmt.Errorf("%w: qty must be at least 1", market.ErrValidation)
	}
	f, err := s.Catalog.Fabric(ctx, fabricID)
	if err != nil {
		return nil, err
	}
	c, err := s.Store.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	i := lineIndex(c, fabricID)
	if i < 0 {
		return nil, fmt.Errorf("fabric %s not in cart: %w", fabricID, market.ErrNotFound)
	}
	if qty > f.Stock {
		return nil, fmt.Errorf("fabric %s: need %d, have %d: %w",
			fabricID, qty, f.Stock, market.ErrInsufficientStock)
	}
	c.Items[i].Qty = qty
	c.Items[i].PriceCents = f.PriceCents
	return s.commit(ctx, c)
}

func (s *Service) Remove(ctx context.Context, customerID, fabricID string) (*market.Cart, error) {
	c, err := s.Store.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	i := lineIndex(c, fabricID)
	if i < 0 {
		return nil, fmt.Errorf("fabric %s not in cart: %w", fabricID, market.ErrNotFound)
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return s.commit(ctx, c)
}

// Clear empties the cart. The cart entity itself is never deleted.
func (s *Service) Clear(ctx context.Context, customerID string) error {
	c, err := s.Store.Get(ctx, customerID)
	if err != nil {
		return err
	}
	c.Items = nil
	_, err = s.commit(ctx, c)
	return err
}

// Snapshot returns a copy of the current line list for order conversion.
func (s *Service) Snapshot(ctx context.Context, customerID string) ([]market.CartItem, error) {
	c, err := s.Store.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	out := make([]market.CartItem, len(c.Items))
	copy(out, c.Items)
	return out, nil
}

func (s *Service) commit(ctx context.Context, c *market.Cart) (*market.Cart, error) {
	c.Recalculate()
	c.UpdatedAt = time.Now().UTC()
	if err := s.Store.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func lineIndex(c *market.Cart, fabricID string) int {
	for i := range c.Items {
		if c.Items[i].FabricID == fabricID {
			return i
		}
	}
	return -1
}
