package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/trailer-shop/internal/config"
	"github.com/example/trailer-shop/internal/email"
	"github.com/example/trailer-shop/internal/infrastructure/kafka"
	"github.com/example/trailer-shop/internal/logger"
	"github.com/example/trailer-shop/internal/notification"
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

	if !cfg.PublishingEnabled() {
		zap.S().Fatalw("KAFKA_BROKERS is required for the notifier")
	}
	if cfg.AlertRecipient == "" {
		zap.S().Warnw("ALERT_RECIPIENT not set, low stock alerts will only be logged")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(emailSvc, cfg.AlertRecipient)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	zap.S().Infow("notifier started",
		"brokers", cfg.KafkaBrokers,
		"topic", cfg.KafkaTopic,
		"group", cfg.KafkaGroupID,
		"smtp", cfg.SMTPHost,
	)
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		zap.S().Errorw("consumer stopped", "error", err)
	}
	zap.S().Infow("shutting down")
}
