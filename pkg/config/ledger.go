package config

import (
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vaultcontrol/pkg/ledger"
	"vaultcontrol/pkg/solana/runtime"
	"vaultcontrol/pkg/solana/vault"
)

var (
	Ledger ledger.Store
	Bank   *runtime.Bank
	Vaults *vault.Reader
)

// NewBank wires the vault program into a bank over store.
func NewBank(store ledger.Store, programID solana.PublicKey, reg prometheus.Registerer) (*runtime.Bank, error) {
	opts := []runtime.Option{runtime.WithProgram(vault.NewProgram(programID))}
	if reg != nil {
		metrics, err := runtime.NewMetrics(reg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, runtime.WithMetrics(metrics))
	}
	return runtime.NewBank(store, opts...), nil
}

// InitLedger builds the ledger store on db and the bank executing against it.
func InitLedger(cfg *AppConfig, db *gorm.DB) {
	store := ledger.NewGormStore(db)
	bank, err := NewBank(store, cfg.VaultProgramID, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("Failed to register bank metrics:", err)
	}

	Ledger = store
	Bank = bank
	Vaults = vault.NewReader(store, cfg.VaultProgramID)
	log.WithField("program", cfg.VaultProgramID.String()).Info("Ledger initialized")
}
