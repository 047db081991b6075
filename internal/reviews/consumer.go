package reviews

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/fabricmart/go-fabric-market/internal/kafka"
	"github.com/fabricmart/go-fabric-market/internal/market"
	"github.com/fabricmart/go-fabric-market/internal/redisx"
)

// Worker re-runs the shop rollup for every accepted review event. It is a
// retry/repair path behind the in-process cascade: processing the same event
// twice is harmless because the recompute is idempotent, but dedup keeps the
// noise down.
type Worker struct {
	Cascade     *Service
	Redis       *redis.Client
	ServiceName string
	Log         *zap.Logger
}

func (w *Worker) HandleReviewAdded(ctx context.Context, m kafkago.Message) error {
	var env market.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != market.EventReviewAdded {
		return nil // ignore
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, w.ServiceName, env.EventID)
	exists, _ := redisx.Exists(ctx, w.Redis, dkey)
	if exists {
		return nil
	}
	_ = w.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[market.ReviewAddedPayload](env.Payload)
	if err != nil {
		return err
	}

	rating, total, err := w.Cascade.RecomputeShop(ctx, p.ShopID)
	if err != nil {
		return err
	}

	ckey := fmt.Sprintf(redisx.KeyShopRating, p.ShopID)
	body, _ := json.Marshal(map[string]any{"rating": rating, "total_reviews": total})
	_ = w.Redis.Set(ctx, ckey, body, redisx.TTLRatingCache).Err()

	w.Log.Debug("shop rating recomputed",
		zap.String("shop_id", p.ShopID),
		zap.Float64("rating", rating),
		zap.Int("total_reviews", total))
	return nil
}
