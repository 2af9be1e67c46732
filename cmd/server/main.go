package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookstore-service/config"
	"bookstore-service/internal/api"
	"bookstore-service/internal/broker"
	"bookstore-service/internal/redisclient"
	"bookstore-service/internal/service"
	"bookstore-service/internal/store"
	"bookstore-service/internal/sweeper"
	"bookstore-service/internal/util"
	"bookstore-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		panic(err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	tp, err := util.InitTracer("bookstore-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redis, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCommerce)
	defer producer.Close()
	publisher := broker.NewEventPublisher(producer)

	var gateway service.PaymentGateway
	if cfg.Gateway.Mock {
		gateway = service.NewMockGateway(0.9)
		logger.Info("Using mock payment gateway")
	} else {
		gateway = service.NewHTTPGateway(cfg.Gateway.URL, cfg.Gateway.Timeout)
	}

	ledger := service.NewInventoryLedger(db, redis, publisher, service.MaxCostRepricing{}, cfg.Catalog.DefaultMarginBps)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	bookIDs, err := db.ActiveBookIDs(seedCtx)
	if err != nil {
		logger.Error("Failed to list books for stock cache seeding", zap.Error(err))
	} else if err := ledger.SyncStockToRedis(seedCtx, bookIDs); err != nil {
		logger.Error("Failed to seed stock cache", zap.Error(err))
	}
	seedCancel()

	carts := service.NewCartService(db, ledger)
	checkout := service.NewCheckoutService(db, ledger, gateway, publisher, cfg.Gateway.Timeout)
	exchanges := service.NewExchangeService(db, ledger, publisher)

	sw := sweeper.New(db, ledger, redis, publisher, cfg.Sweeper)
	sw.Start()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCommerce, cfg.Kafka.ConsumerGroup)
	notifier := worker.New(consumer)
	notifier.Start()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handler := api.NewHandler(db, carts, checkout, exchanges, ledger)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	sw.Stop()
	notifier.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown tracer", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
