package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fabricmart/go-fabric-market/internal/cart"
	"github.com/fabricmart/go-fabric-market/internal/config"
	"github.com/fabricmart/go-fabric-market/internal/httpx"
	"github.com/fabricmart/go-fabric-market/internal/inventory"
	kafkax "github.com/fabricmart/go-fabric-market/internal/kafka"
	"github.com/fabricmart/go-fabric-market/internal/market"
	"github.com/fabricmart/go-fabric-market/internal/notify"
	"github.com/fabricmart/go-fabric-market/internal/orders"
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

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pPlaced := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicOrderPlaced, 1024)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicOrderCancelled, 1024)
	pReviews := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicReviewAdded, 1024)
	pEmail := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicEmail, 1024)
	producers := []*kafkax.Producer{pPlaced, pCancelled, pReviews, pEmail}
	for _, p := range producers {
		p.Start(ctx)
	}

	notifier := &notify.Notifier{
		Placed:    pPlaced,
		Cancelled: pCancelled,
		Reviews:   pReviews,
		Email:     pEmail,
		Service:   cfg.ServiceName,
	}

	cartSvc := &cart.Service{
		Store:   &cart.PGStore{DB: db},
		Catalog: &cart.PGCatalog{DB: db},
	}
	orderSvc := &orders.Service{
		Ledger:          &inventory.PG{DB: db, Log: logger},
		Repo:            &orders.PGRepo{DB: db},
		Carts:           cartSvc,
		Notify:          notifier,
		Log:             logger,
		TrackingBaseURL: cfg.TrackingBaseURL,
	}
	reviewSvc := &reviews.Service{
		Store:  &reviews.PGStore{DB: db},
		Events: notifier,
		Log:    logger,
	}

	router := httpx.NewRouter()
	h := &httpx.Handler{
		Orders:  orderSvc,
		Carts:   cartSvc,
		Reviews: reviewSvc,
		Redis:   rdb,
		Log:     logger,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range producers {
		p.Close() // close inbox -> flush & close writer
	}
	cancel()
	for _, p := range producers {
		p.WaitClosed()
	}
}
