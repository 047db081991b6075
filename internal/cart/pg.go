package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabricmart/go-fabric-market/internal/market"
)

type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) Get(ctx context.Context, customerID string) (*market.Cart, error) {
	c := &market.Cart{CustomerID: customerID}
	err := s.DB.QueryRow(ctx, `
		SELECT total_items, total_cents, updated_at
		FROM carts WHERE customer_id=$1`, customerID).
		Scan(&c.TotalItems, &c.TotalCents, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil // lazily created on first save
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT fabric_id, qty, price_cents, subtotal_cents
		FROM cart_items WHERE customer_id=$1 ORDER BY position`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it market.CartItem
		if err := rows.Scan(&it.FabricID, &it.Qty, &it.PriceCents, &it.SubtotalCents); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

func (s *PGStore) Save(ctx context.Context, c *market.Cart) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO carts(customer_id, total_items, total_cents, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (customer_id) DO UPDATE
		SET total_items=EXCLUDED.total_items,
		    total_cents=EXCLUDED.total_cents,
		    updated_at=EXCLUDED.updated_at`,
		c.CustomerID, c.TotalItems, c.TotalCents, c.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE customer_id=$1`, c.CustomerID); err != nil {
		return err
	}
	for i, it := range c.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO cart_items(customer_id, position, fabric_id, qty, price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			c.CustomerID, i, it.FabricID, it.Qty, it.PriceCents, it.SubtotalCents); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// PGCatalog reads current fabric state for cart validation.
type PGCatalog struct{ DB *pgxpool.Pool }

func (c *PGCatalog) Fabric(ctx context.Context, id string) (*market.Fabric, error) {
	var f market.Fabric
	err := c.DB.QueryRow(ctx, `
		SELECT id, shop_id, name, price_cents, stock, total_purchases, rating, active,
		       created_at, updated_at
		FROM fabrics WHERE id=$1 AND active`, id).Scan(
		&f.ID, &f.ShopID, &f.Name, &f.PriceCents, &f.Stock, &f.TotalPurchases,
		&f.Rating, &f.Active, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("fabric %s: %w", id, market.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}
