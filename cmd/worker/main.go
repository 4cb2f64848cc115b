package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	logrus "github.com/sirupsen/logrus"

	"vaultcontrol/internal/indexer"
	"vaultcontrol/pkg/config"
	"vaultcontrol/pkg/events"
)

func main() {
	// Initialize logger
	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Failed to load config: ", err)
	}
	config.ConfigureLogging(cfg)

	// Initialize database
	config.InitDB(cfg)

	// Initialize RabbitMQ
	config.InitRabbitMQ(cfg)
	defer config.RabbitMQ.Close()

	msgConsumer, err := config.NewConsumer(events.QueueVaultCreated)
	if err != nil {
		logrus.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vaultIndexer := indexer.NewVaultIndexer(config.DB)
	logrus.Info("Vault index worker started, waiting for messages...")

	err = msgConsumer.Consume(ctx, vaultIndexer.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		logrus.Fatal("Failed to start consumer: ", err)
	}
	logrus.Info("Vault index worker stopped")
}
