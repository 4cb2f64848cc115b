package indexer

import (
	"encoding/json"
	"fmt"

	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vaultcontrol/internal/models"
	"vaultcontrol/pkg/events"
)

// VaultIndexer writes vault_created events into the vault_index table.
type VaultIndexer struct {
	db *gorm.DB
}

func NewVaultIndexer(db *gorm.DB) *VaultIndexer {
	return &VaultIndexer{db: db}
}

// HandleMessage decodes a VaultCreated event and upserts it by address.
// Replayed events overwrite the row with the same values.
func (i *VaultIndexer) HandleMessage(msg []byte) error {
	var event events.VaultCreated
	if err := json.Unmarshal(msg, &event); err != nil {
		// A malformed message can never succeed, drop it.
		logrus.Errorf("Failed to unmarshal vault_created message: %v", err)
		return nil
	}
	if event.Address == "" {
		logrus.WithField("id", event.ID).Warn("vault_created event without address, skipping")
		return nil
	}

	row := models.VaultIndex{
		Address:      event.Address,
		Name:         event.Name,
		Manager:      event.Manager,
		TokenAccount: event.TokenAccount,
		Mint:         event.Mint,
		Fee:          event.Fee,
		InitTs:       event.InitTs,
		Signature:    event.Signature,
	}
	err := i.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "manager", "token_account", "mint", "fee", "init_ts", "signature", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to index vault %s: %w", event.Address, err)
	}

	logrus.WithFields(logrus.Fields{
		"address":   event.Address,
		"name":      event.Name,
		"signature": event.Signature,
	}).Info("Vault indexed")
	return nil
}
