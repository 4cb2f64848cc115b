package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:     "vaultctl",
		Usage:    "vault 管理工具: 地址推导, 创建 vault, 密钥与数据库迁移",
		Version:  "1.0.0",
		Commands: commands(),
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
