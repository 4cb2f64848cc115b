package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"vaultcontrol/pkg/config"
	"vaultcontrol/pkg/events"
	"vaultcontrol/pkg/solana/runtime"
	"vaultcontrol/pkg/solana/vault"
)

// commands 返回所有可用的子命令
func commands() []*cli.Command {
	return []*cli.Command{
		deriveCmd,  // 推导 vault PDA
		layoutCmd,  // 打印账户布局
		keygenCmd,  // 生成密钥
		airdropCmd, // 本地账本空投
		createCmd,  // 创建 vault
		migrateCmd, // 数据库迁移
		purgeCmd,   // 清空事件队列
	}
}

var programFlag = &cli.StringFlag{
	Name:  "program",
	Usage: "vault program id",
	Value: vault.DefaultProgramID.String(),
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadConfig loads configuration and connects the ledger for commands
// that touch the database.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	config.ConfigureLogging(cfg)
	db, err := config.OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	config.DB = db
	return cfg, nil
}

var deriveCmd = &cli.Command{
	Name:      "derive",
	Usage:     "推导 vault 与 token account 地址",
	ArgsUsage: "<name>",
	Flags:     []cli.Flag{programFlag},
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return fmt.Errorf("expected exactly one vault name")
		}
		programID, err := solana.PublicKeyFromBase58(c.String("program"))
		if err != nil {
			return fmt.Errorf("invalid program id: %w", err)
		}
		name, err := vault.EncodeName(c.Args().First())
		if err != nil {
			return err
		}
		vaultPDA, err := vault.FindVaultAddress(programID, name)
		if err != nil {
			return err
		}
		tokenPDA, err := vault.FindVaultTokenAccountAddress(programID, vaultPDA.Address)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"program":       programID.String(),
			"name":          vault.DecodeName(name),
			"vault":         vaultPDA,
			"token_account": tokenPDA,
		})
	},
}

var layoutCmd = &cli.Command{
	Name:  "layout",
	Usage: "打印 vault 账户布局与租金",
	Action: func(c *cli.Context) error {
		rent := runtime.DefaultRent()
		return printJSON(map[string]interface{}{
			"space":                       vault.Space,
			"account_discriminator":       hex.EncodeToString(vault.Discriminator[:]),
			"instruction_discriminator":   hex.EncodeToString(vault.CreateVaultDiscriminator[:]),
			"vault_rent_lamports":         rent.MinimumBalance(vault.Space),
			"token_account_rent_lamports": rent.MinimumBalance(runtime.TokenAccountSize),
		})
	},
}

var keygenCmd = &cli.Command{
	Name:  "keygen",
	Usage: "生成新的加密密钥",
	Action: func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		config.InitKeystore(cfg)
		account, err := config.Keys.GenerateKeyPair()
		if err != nil {
			return err
		}
		if _, err := config.Keys.SaveKeyStoreEntry(account, cfg.KeystorePassword); err != nil {
			return err
		}
		fmt.Println(account.PublicKey.ToBase58())
		return nil
	},
}

var airdropCmd = &cli.Command{
	Name:  "airdrop",
	Usage: "向本地账本中的地址空投 lamports",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "to", Required: true},
		&cli.Uint64Flag{Name: "lamports", Required: true},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		config.InitLedger(cfg, config.DB)
		to, err := solana.PublicKeyFromBase58(c.String("to"))
		if err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
		account, err := config.Bank.Airdrop(c.Context, to, c.Uint64("lamports"))
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"address":  account.Address.String(),
			"lamports": account.Lamports,
		})
	},
}

var createCmd = &cli.Command{
	Name:  "create",
	Usage: "在本地账本上创建 vault",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "name", Required: true},
		&cli.StringFlag{Name: "mint", Required: true},
		&cli.StringFlag{Name: "manager", Required: true, Usage: "keystore address of the manager"},
		&cli.StringFlag{Name: "payer", Usage: "keystore address of the payer, defaults to manager"},
		&cli.UintFlag{Name: "fee"},
		&cli.UintFlag{Name: "profit-share"},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		config.InitLedger(cfg, config.DB)
		config.InitKeystore(cfg)
		config.InitEvents(cfg)

		mint, err := solana.PublicKeyFromBase58(c.String("mint"))
		if err != nil {
			return fmt.Errorf("invalid mint: %w", err)
		}
		manager, err := config.Keys.LoadSigner(c.String("manager"), cfg.KeystorePassword)
		if err != nil {
			return err
		}
		payer := manager
		if addr := c.String("payer"); addr != "" {
			if payer, err = config.Keys.LoadSigner(addr, cfg.KeystorePassword); err != nil {
				return err
			}
		}

		result, err := vault.CreateVault(c.Context, config.Bank, vault.CreateVaultRequest{
			ProgramID:   cfg.VaultProgramID,
			Mint:        mint,
			Name:        c.String("name"),
			ProfitShare: uint32(c.Uint("profit-share")),
			Fee:         uint32(c.Uint("fee")),
			Manager:     manager,
			Payer:       payer,
		})
		if err != nil {
			return err
		}

		if config.Events != nil {
			created, err := config.Vaults.GetVault(c.Context, result.Vault.Address)
			if err != nil {
				return err
			}
			event := events.NewVaultCreated(result.Signature.String(), mint.String(), created)
			if err := config.Events.Publish(c.Context, events.QueueVaultCreated, event); err != nil {
				return err
			}
		}
		return printJSON(result)
	},
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "执行数据库迁移 (仅 postgres)",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "dir", Value: "migrations"},
	},
	Subcommands: []*cli.Command{
		{
			Name:  "up",
			Usage: "应用所有未执行的迁移",
			Action: func(c *cli.Context) error {
				if _, err := loadConfig(); err != nil {
					return err
				}
				return config.ExecuteMigrations(config.DB, c.String("dir"))
			},
		},
		{
			Name:  "down",
			Usage: "回滚最近一次迁移",
			Action: func(c *cli.Context) error {
				if _, err := loadConfig(); err != nil {
					return err
				}
				return config.RollbackMigration(config.DB, c.String("dir"))
			},
		},
	},
}

var purgeCmd = &cli.Command{
	Name:  "purge-events",
	Usage: "清空 RabbitMQ 中未消费的 vault 事件",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "queue", Value: events.QueueVaultCreated},
	},
	Action: func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		config.ConfigureLogging(cfg)
		config.InitRabbitMQ(cfg)
		defer config.RabbitMQ.Close()

		return config.PurgeQueue(c.String("queue"))
	},
}
