// Package inventory owns per-fabric stock and purchase counters.
//
// Reserve and Release are the only ways order flow touches stock. Both are
// atomic per fabric: concurrent reservations can never drive stock negative.
package inventory

import (
	"context"
)

// Ledger is the stock authority consulted by order creation and cancellation.
type Ledger interface {
	// Reserve decrements stock and increments totalPurchases by qty, failing
	// with market.ErrNotFound (missing or inactive fabric) or
	// market.ErrInsufficientStock. On success it returns the unit price in
	// effect at that instant, to be frozen into the order line.
	Reserve(ctx context.Context, fabricID string, qty int) (priceCents int, err error)

	// Release reverses a reservation: stock += qty, totalPurchases -= qty.
	// totalPurchases is clamped at zero; a clamp is a consistency warning,
	// not an error.
	Release(ctx context.Context, fabricID string, qty int) error
}
