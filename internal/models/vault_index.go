package models

import "time"

// VaultIndex is the off-chain index of created vaults, filled by the worker
// from vault_created events.
type VaultIndex struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Address      string    `gorm:"size:64;uniqueIndex;not null" json:"address"`
	Name         string    `gorm:"size:32;not null" json:"name"`
	Manager      string    `gorm:"size:64;not null;index" json:"manager"`
	TokenAccount string    `gorm:"size:64;not null" json:"token_account"`
	Mint         string    `gorm:"size:64;not null" json:"mint"`
	Fee          int64     `gorm:"not null" json:"fee"`
	InitTs       int64     `gorm:"not null" json:"init_ts"`
	Signature    string    `gorm:"size:128" json:"signature"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (VaultIndex) TableName() string {
	return "vault_index"
}

// VaultStat is a point-in-time snapshot of a vault's accounting counters
type VaultStat struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	Address        string    `gorm:"size:64;not null;index" json:"address"`
	Name           string    `gorm:"size:32;not null" json:"name"`
	TotalShares    string    `gorm:"size:40;not null" json:"total_shares"`
	TotalDeposits  uint64    `gorm:"not null" json:"total_deposits"`
	TotalWithdraws uint64    `gorm:"not null" json:"total_withdraws"`
	Tvl            uint64    `gorm:"not null" json:"tvl"`
	SnapshotAt     time.Time `gorm:"not null;index" json:"snapshot_at"`
}

func (VaultStat) TableName() string {
	return "vault_stats"
}
