package models

import (
	"time"
)

// LedgerAccount is one persisted ledger entry, keyed by its base58 address
type LedgerAccount struct {
	Address    string    `gorm:"column:address;primaryKey;size:64" json:"address"`
	Owner      string    `gorm:"column:owner;size:64;not null;index" json:"owner"`
	Lamports   uint64    `gorm:"column:lamports;not null;default:0" json:"lamports"`
	Data       []byte    `gorm:"column:data" json:"data"`
	Executable bool      `gorm:"column:executable;default:false" json:"executable"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (LedgerAccount) TableName() string {
	return "ledger_accounts"
}

// LedgerTransaction records every transaction the runtime committed
type LedgerTransaction struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Signature string    `gorm:"column:signature;size:128;uniqueIndex;not null" json:"signature"`
	Slot      uint64    `gorm:"column:slot;not null" json:"slot"`
	Payer     string    `gorm:"column:payer;size:64;not null" json:"payer"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (LedgerTransaction) TableName() string {
	return "ledger_transactions"
}
