package reviews

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabricmart/go-fabric-market/internal/market"
)

type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) Fabric(ctx context.Context, id string) (*market.Fabric, error) {
	var f market.Fabric
	err := s.DB.QueryRow(ctx, `
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

func (s *PGStore) ReviewsByFabric(ctx context.Context, fabricID string) ([]market.Review, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, fabric_id, reviewer_id, rating, comment, created_at
		FROM reviews WHERE fabric_id=$1 ORDER BY created_at`, fabricID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Review
	for rows.Next() {
		var r market.Review
		if err := rows.Scan(&r.ID, &r.FabricID, &r.ReviewerID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) AppendReview(ctx context.Context, r market.Review) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO reviews(id, fabric_id, reviewer_id, rating, comment, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		r.ID, r.FabricID, r.ReviewerID, r.Rating, r.Comment, r.CreatedAt)
	return err
}

func (s *PGStore) SetFabricRating(ctx context.Context, fabricID string, rating float64) error {
	_, err := s.DB.Exec(ctx,
		`UPDATE fabrics SET rating=$2, updated_at=now() WHERE id=$1`, fabricID, rating)
	return err
}

// FabricRatings computes each rated fabric's mean directly from its reviews,
// so the shop rollup never reads a stale stored aggregate.
func (s *PGStore) FabricRatings(ctx context.Context, shopID string) ([]FabricRating, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT AVG(r.rating)::float8, COUNT(r.id)
		FROM fabrics f
		JOIN reviews r ON r.fabric_id = f.id
		WHERE f.shop_id=$1 AND f.active
		GROUP BY f.id`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FabricRating
	for rows.Next() {
		var fr FabricRating
		if err := rows.Scan(&fr.Rating, &fr.ReviewCount); err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

func (s *PGStore) SetShopRating(ctx context.Context, shopID string, rating float64, totalReviews int) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE shops SET rating=$2, total_reviews=$3, updated_at=now()
		WHERE id=$1`, shopID, rating, totalReviews)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("shop %s: %w", shopID, market.ErrNotFound)
	}
	return nil
}

func (s *PGStore) ShopIDs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT id FROM shops ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
