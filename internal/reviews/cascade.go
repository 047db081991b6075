// Package reviews implements the two-level rating cascade: a review feeds a
// fabric's mean rating, which feeds the owning shop's rating-of-ratings.
//
// The review append is the durable fact. Every rating downstream of it is a
// projection recomputed from current review state, so recomputation is
// idempotent and doubles as a repair operation.
package reviews

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fabricmart/go-fabric-market/internal/market"
)

// FabricRating is one active fabric's aggregate as seen by the shop rollup.
type FabricRating struct {
	Rating      float64
	ReviewCount int
}

type Store interface {
	// Fabric returns an active fabric or market.ErrNotFound.
	Fabric(ctx context.Context, id string) (*market.Fabric, error)
	ReviewsByFabric(ctx context.Context, fabricID string) ([]market.Review, error)
	AppendReview(ctx context.Context, r market.Review) error
	SetFabricRating(ctx context.Context, fabricID string, rating float64) error
	// FabricRatings returns, for each of the shop's active fabrics with at
	// least one review, the mean of that fabric's review ratings and the
	// review count — computed from the reviews themselves, not from any
	// stored aggregate.
	FabricRatings(ctx context.Context, shopID string) ([]FabricRating, error)
	SetShopRating(ctx context.Context, shopID string, rating float64, totalReviews int) error
	ShopIDs(ctx context.Context) ([]string, error)
}

// Events receives fire-and-forget notifications of accepted reviews.
type Events interface {
	ReviewAdded(r *market.Review, shopID string, newFabricRating float64)
}

type Service struct {
	Store  Store
	Events Events
	Log    *zap.Logger
}

// AddReview appends a review (at most one per reviewer per fabric) and runs
// the cascade. A cascade failure after the append is logged, never surfaced:
// the review stands and the projection can be repaired later.
func (s *Service) AddReview(ctx context.Context, p market.Principal, fabricID string, rating int, comment string) (*market.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be 1..5", market.ErrValidation)
	}
	f, err := s.Store.Fabric(ctx, fabricID)
	if err != nil {
		return nil, err
	}

	existing, err := s.Store.ReviewsByFabric(ctx, fabricID)
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.ReviewerID == p.ID {
			return nil, fmt.Errorf("fabric %s reviewer %s: %w", fabricID, p.ID, market.ErrDuplicateReview)
		}
	}

	rev := market.Review{
		ID:         uuid.NewString(),
		FabricID:   fabricID,
		ReviewerID: p.ID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Store.AppendReview(ctx, rev); err != nil {
		return nil, err
	}

	// Recompute from the freshly persisted list rather than an in-memory
	// running total, so concurrent appends cannot lose each other's update.
	newRating, err := s.recomputeFabric(ctx, fabricID)
	if err != nil {
		s.Log.Error("fabric rating recompute failed",
			zap.String("fabric_id", fabricID), zap.Error(err))
		return &rev, nil
	}

	if _, _, err := s.RecomputeShop(ctx, f.ShopID); err != nil {
		s.Log.Error("shop rating recompute failed",
			zap.String("shop_id", f.ShopID), zap.Error(err))
	}
	if s.Events != nil {
		s.Events.ReviewAdded(&rev, f.ShopID, newRating)
	}
	return &rev, nil
}

func (s *Service) recomputeFabric(ctx context.Context, fabricID string) (float64, error) {
	list, err := s.Store.ReviewsByFabric(ctx, fabricID)
	if err != nil {
		return 0, err
	}
	mean := 0.0
	if len(list) > 0 {
		sum := 0
		for _, r := range list {
			sum += r.Rating
		}
		mean = float64(sum) / float64(len(list))
	}
	return mean, s.Store.SetFabricRating(ctx, fabricID, mean)
}

// RecomputeShop recomputes a shop's rating as the unweighted mean of its
// rated fabrics' own mean ratings (a rating of ratings, not a flat mean over
// every review), and totalReviews as the sum of per-fabric counts. Pure in
// current review state; safe to run repeatedly.
func (s *Service) RecomputeShop(ctx context.Context, shopID string) (rating float64, totalReviews int, err error) {
	rows, err := s.Store.FabricRatings(ctx, shopID)
	if err != nil {
		return 0, 0, err
	}
	if len(rows) > 0 {
		sum := 0.0
		for _, fr := range rows {
			sum += fr.Rating
			totalReviews += fr.ReviewCount
		}
		rating = sum / float64(len(rows))
	}
	if err := s.Store.SetShopRating(ctx, shopID, rating, totalReviews); err != nil {
		return 0, 0, err
	}
	return rating, totalReviews, nil
}

// RepairSummary reports a batch recomputation across shops.
type RepairSummary struct {
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

// RepairAll recomputes every shop's rating with bounded parallelism. A shop
// failing does not stop the sweep.
func (s *Service) RepairAll(ctx context.Context) (RepairSummary, error) {
	ids, err := s.Store.ShopIDs(ctx)
	if err != nil {
		return RepairSummary{}, err
	}

	var (
		mu  sync.Mutex
		sum RepairSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, _, err := s.RecomputeShop(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.Log.Warn("shop repair failed", zap.String("shop_id", id), zap.Error(err))
				sum.Failed = append(sum.Failed, id)
				return nil
			}
			sum.Updated++
			return nil
		})
	}
	_ = g.Wait()
	return sum, nil
}
