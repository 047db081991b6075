package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fabricmart/go-fabric-market/internal/config"
	kafkax "github.com/fabricmart/go-fabric-market/internal/kafka"
	"github.com/fabricmart/go-fabric-market/internal/market"
	"github.com/fabricmart/go-fabric-market/internal/postgres"
	"github.com/fabricmart/go-fabric-market/internal/redisx"
	"github.com/fabricmart/go-fabric-market/internal/reviews"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	cascade := &reviews.Service{
		Store: &reviews.PGStore{DB: db},
		Log:   logger,
	}
	worker := &reviews.Worker{
		Cascade:     cascade,
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-ratings",
		Log:         logger,
	}

	group := getenv("RATINGS_GROUP", "ratings-svc")
	workers := mustAtoi(os.Getenv("RATINGS_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, market.TopicReviewAdded, workers, logger)

	go func() {
		logger.Info("ratings consumer started",
			zap.String("group", group),
			zap.String("topic", market.TopicReviewAdded),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, worker.HandleReviewAdded); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// Periodic repair sweep: ratings are projections, so recomputing them all
	// is always safe.
	go func() {
		t := time.NewTicker(cfg.RepairInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				sum, err := cascade.RepairAll(ctx)
				if err != nil {
					logger.Warn("repair sweep failed", zap.Error(err))
					continue
				}
				logger.Info("repair sweep done",
					zap.Int("updated", sum.Updated),
					zap.Int("failed", len(sum.Failed)))
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
