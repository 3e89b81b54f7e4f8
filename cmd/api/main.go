package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/trailer-shop/internal/api"
	"github.com/example/trailer-shop/internal/auth"
	"github.com/example/trailer-shop/internal/command"
	"github.com/example/trailer-shop/internal/config"
	"github.com/example/trailer-shop/internal/infrastructure/kafka"
	"github.com/example/trailer-shop/internal/infrastructure/store"
	"github.com/example/trailer-shop/internal/logger"
	"github.com/example/trailer-shop/internal/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.RequireJWTSecret(); err != nil {
		zap.S().Fatalw("invalid configuration", "error", err)
	}

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		zap.S().Fatalw("failed to connect to PostgreSQL", "error", err)
	}
	defer db.Close()
	zap.S().Infow("connected to PostgreSQL")

	pgStore := store.NewPostgresStore(db)

	// Publishing is optional; without brokers the workflow runs without events.
	var publisher command.EventPublisher
	if cfg.PublishingEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
		zap.S().Infow("publishing events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		zap.S().Warnw("KAFKA_BROKERS not set, events will not be published")
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)
	cmdHandler := command.NewHandler(pgStore, publisher, cfg.IDMaxAttempts)
	queryHandler := query.NewHandler(pgStore)

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	health.AddReadinessCheck("database", healthcheck.DatabasePingCheck(db, time.Second))

	router := api.NewRouter(api.RouterConfig{
		Handlers:     api.NewHandlers(cmdHandler, queryHandler),
		AuthHandlers: api.NewAuthHandlers(pgStore, jwtService),
		JWTService:   jwtService,
		Extra: map[string]http.Handler{
			"GET /live":    health,
			"GET /ready":   health,
			"GET /metrics": promhttp.Handler(),
		},
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.S().Infow("server started", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalw("server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zap.S().Infow("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorw("graceful shutdown failed", "error", err)
	}
}
