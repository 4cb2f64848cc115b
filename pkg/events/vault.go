package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vaultcontrol/pkg/solana/vault"
)

// QueueVaultCreated carries VaultCreated events from the api to the worker.
const QueueVaultCreated = "vault_created"

// VaultCreated is published after a create_vault transaction commits.
type VaultCreated struct {
	ID           string    `json:"id"`
	Signature    string    `json:"signature"`
	Address      string    `json:"address"`
	Name         string    `json:"name"`
	Manager      string    `json:"manager"`
	TokenAccount string    `json:"token_account"`
	Mint         string    `json:"mint"`
	Fee          int64     `json:"fee"`
	InitTs       int64     `json:"init_ts"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewVaultCreated(signature string, mint string, v *vault.Vault) VaultCreated {
	return VaultCreated{
		ID:           uuid.NewString(),
		Signature:    signature,
		Address:      v.Pubkey.String(),
		Name:         vault.DecodeName(v.Name),
		Manager:      v.Manager.String(),
		TokenAccount: v.TokenAccount.String(),
		Mint:         mint,
		Fee:          v.Fee,
		InitTs:       v.Ts,
		OccurredAt:   time.Now().UTC(),
	}
}

// Publisher is the subset of a message broker client used to emit events.
type Publisher interface {
	Publish(ctx context.Context, queueName string, message interface{}) error
}
