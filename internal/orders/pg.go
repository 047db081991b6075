package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabricmart/go-fabric-market/internal/market"
)

type PGRepo struct{ DB *pgxpool.Pool }

func (r *PGRepo) Insert(ctx context.Context, o *market.Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, customer_id, subtotal_cents, shipping_cents, tax_cents,
		                   total_cents, status, payment_status, payment_method,
		                   shipping_method, shipping_address, estimated_delivery,
		                   created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.CustomerID, o.SubtotalCents, o.ShippingCents, o.TaxCents,
		o.TotalCents, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.ShippingMethod, o.ShippingAddress, o.EstimatedDelivery,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, fabric_id, qty, price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, it.FabricID, it.Qty, it.PriceCents, it.SubtotalCents); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PGRepo) Get(ctx context.Context, id string) (*market.Order, error) {
	var o market.Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, customer_id, subtotal_cents, shipping_cents, tax_cents, total_cents,
		       status, payment_status, payment_method, shipping_method, shipping_address,
		       estimated_delivery, COALESCE(tracking_number, ''), delivered_at,
		       COALESCE(cancel_reason, ''), created_at, updated_at
		FROM orders WHERE id=$1`, id).Scan(
		&o.ID, &o.CustomerID, &o.SubtotalCents, &o.ShippingCents, &o.TaxCents,
		&o.TotalCents, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.ShippingMethod, &o.ShippingAddress, &o.EstimatedDelivery,
		&o.TrackingNumber, &o.DeliveredAt, &o.CancelReason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, market.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT fabric_id, qty, price_cents, subtotal_cents
		FROM order_items WHERE order_id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it market.OrderItem
		if err := rows.Scan(&it.FabricID, &it.Qty, &it.PriceCents, &it.SubtotalCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (r *PGRepo) Save(ctx context.Context, o *market.Order) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET status=$2, payment_status=$3, tracking_number=NULLIF($4,''),
		    delivered_at=$5, cancel_reason=NULLIF($6,''), updated_at=$7
		WHERE id=$1`,
		o.ID, o.Status, o.PaymentStatus, o.TrackingNumber,
		o.DeliveredAt, o.CancelReason, o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("order %s: %w", o.ID, market.ErrNotFound)
	}
	return nil
}
