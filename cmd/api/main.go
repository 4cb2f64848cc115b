package main

import (
	log "github.com/sirupsen/logrus"

	"vaultcontrol/internal/routes"
	"vaultcontrol/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	config.ConfigureLogging(cfg)

	// Initialize database and ledger
	config.InitDB(cfg)
	config.InitLedger(cfg, config.DB)
	config.InitKeystore(cfg)

	// RabbitMQ is optional, events are skipped when disabled
	config.InitEvents(cfg)
	defer func() {
		if config.RabbitMQ != nil {
			config.RabbitMQ.Close()
		}
	}()

	r := routes.SetupRouter(cfg)

	log.Infof("Server listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
