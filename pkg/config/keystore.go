package config

import (
	log "github.com/sirupsen/logrus"

	"vaultcontrol/pkg/events"
	"vaultcontrol/pkg/keystore"
)

var (
	Keys   *keystore.KeyManager
	Events events.Publisher
)

// InitKeystore opens the encrypted key directory used to sign transactions.
func InitKeystore(cfg *AppConfig) {
	if cfg.KeystorePassword == "" {
		log.Warn("KEYSTORE_PASSWORD is empty, keys are encrypted with an empty password")
	}
	Keys = keystore.NewKeyManager(cfg.KeystoreDir)
}

// InitEvents connects to RabbitMQ and installs a publisher for vault
// events when EVENTS_ENABLED is set.
func InitEvents(cfg *AppConfig) {
	if !cfg.EventsEnabled {
		log.Info("RabbitMQ not configured, skipping event publishing")
		return
	}
	InitRabbitMQ(cfg)
	publisher, err := NewPublisher()
	if err != nil {
		log.Fatal("Failed to create publisher:", err)
	}
	Events = publisher
}
