package vault

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"vaultcontrol/pkg/ledger"
)

// VaultInfo is the read model of a vault account.
type VaultInfo struct {
	Address          solana.PublicKey `json:"address"`
	Name             string           `json:"name"`
	Manager          solana.PublicKey `json:"manager"`
	TokenAccount     solana.PublicKey `json:"token_account"`
	Bump             uint8            `json:"bump"`
	Fee              int64            `json:"fee"`
	TotalShares      string           `json:"total_shares"`
	TotalDeposits    uint64           `json:"total_deposits"`
	TotalWithdraws   uint64           `json:"total_withdraws"`
	MinDepositAmount uint64           `json:"min_deposit_amount"`
	Tvl              uint64           `json:"tvl"`
	CreatedAt        time.Time        `json:"created_at"`
}

func NewVaultInfo(v *Vault) VaultInfo {
	return VaultInfo{
		Address:          v.Pubkey,
		Name:             DecodeName(v.Name),
		Manager:          v.Manager,
		TokenAccount:     v.TokenAccount,
		Bump:             v.Bump,
		Fee:              v.Fee,
		TotalShares:      v.TotalSharesString(),
		TotalDeposits:    v.TotalDeposits,
		TotalWithdraws:   v.TotalWithdraws,
		MinDepositAmount: v.MinDepositAmount,
		Tvl:              v.TVL(),
		CreatedAt:        time.Unix(v.Ts, 0).UTC(),
	}
}

// Reader answers vault queries from a ledger store.
type Reader struct {
	store     ledger.Store
	programID solana.PublicKey
}

func NewReader(store ledger.Store, programID solana.PublicKey) *Reader {
	return &Reader{store: store, programID: programID}
}

// GetVault loads and decodes the vault at address.
func (r *Reader) GetVault(ctx context.Context, address solana.PublicKey) (*Vault, error) {
	account, err := r.store.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	if !account.Owner.Equals(r.programID) {
		return nil, fmt.Errorf("%w: %s is owned by %s", ErrNotVault, address, account.Owner)
	}
	return DecodeVault(account.Data)
}

// GetVaultByName derives the vault address for name and loads it.
func (r *Reader) GetVaultByName(ctx context.Context, name string) (*Vault, error) {
	encoded, err := EncodeName(name)
	if err != nil {
		return nil, err
	}
	pda, err := FindVaultAddress(r.programID, encoded)
	if err != nil {
		return nil, err
	}
	return r.GetVault(ctx, pda.Address)
}

// ListVaults returns every vault account owned by the program. Accounts of
// other types owned by the program are skipped.
func (r *Reader) ListVaults(ctx context.Context) ([]*Vault, error) {
	accounts, err := r.store.ListByOwner(ctx, r.programID)
	if err != nil {
		return nil, fmt.Errorf("failed to list program accounts: %w", err)
	}

	vaults := make([]*Vault, 0, len(accounts))
	for _, account := range accounts {
		if len(account.Data) != Space || !bytes.HasPrefix(account.Data, Discriminator[:]) {
			continue
		}
		v, err := DecodeVault(account.Data)
		if err != nil {
			return nil, fmt.Errorf("vault %s: %w", account.Address, err)
		}
		vaults = append(vaults, v)
	}
	return vaults, nil
}

// TotalValueLocked sums the TVL of every vault.
func (r *Reader) TotalValueLocked(ctx context.Context) (uint64, int, error) {
	vaults, err := r.ListVaults(ctx)
	if err != nil {
		return 0, 0, err
	}
	return SumTVL(vaults), len(vaults), nil
}
