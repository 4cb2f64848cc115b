package main

import (
	logger "github.com/sirupsen/logrus"

	"vaultcontrol/pkg/config"
	"vaultcontrol/schedule"
)

func main() {
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: ", err)
	}
	config.ConfigureLogging(cfg)

	config.InitDB(cfg)
	config.InitLedger(cfg, config.DB)

	recorder := schedule.NewVaultStatRecorder(config.DB, config.Vaults)
	c, err := recorder.Start(cfg.StatCron)
	if err != nil {
		logger.Fatal(err)
	}
	defer c.Stop()

	// 保持程序运行
	select {}
}
