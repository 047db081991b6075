package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fabricmart/go-fabric-market/internal/market"
)

// PG implements Ledger on Postgres. The conditional UPDATE is the atomic
// decrement-if-sufficient primitive: the WHERE clause guards the invariant,
// so no explicit row lock is needed on the happy path.
type PG struct {
	DB  *pgxpool.Pool
	Log *zap.Logger
}

func (p *PG) Reserve(ctx context.Context, fabricID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: qty must be positive", market.ErrValidation)
	}

	var price int
	err := p.DB.QueryRow(ctx, `
		UPDATE fabrics
		SET stock = stock - $2,
		    total_purchases = total_purchases + $2,
		    updated_at = now()
		WHERE id = $1 AND active AND stock >= $2
		RETURNING price_cents`, fabricID, qty).Scan(&price)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// No row matched: distinguish a missing/inactive fabric from a shortage.
	var stock int
	err = p.DB.QueryRow(ctx,
		`SELECT stock FROM fabrics WHERE id = $1 AND active`, fabricID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("fabric %s: %w", fabricID, market.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("fabric %s: need %d, have %d: %w",
		fabricID, qty, stock, market.ErrInsufficientStock)
}

func (p *PG) Release(ctx context.Context, fabricID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: qty must be positive", market.ErrValidation)
	}

	var prev int
	err := p.DB.QueryRow(ctx, `
		WITH prev AS (
			SELECT total_purchases FROM fabrics WHERE id = $1 FOR UPDATE
		)
		UPDATE fabrics f
		SET stock = f.stock + $2,
		    total_purchases = GREATEST(f.total_purchases - $2, 0),
		    updated_at = now()
		FROM prev
		WHERE f.id = $1
		RETURNING prev.total_purchases`, fabricID, qty).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("fabric %s: %w", fabricID, market.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if prev < qty {
		p.Log.Warn("release clamped total_purchases at zero",
			zap.String("fabric_id", fabricID),
			zap.Int("qty", qty),
			zap.Int("total_purchases_before", prev))
	}
	return nil
}
