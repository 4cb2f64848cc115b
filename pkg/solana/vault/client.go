package vault

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"vaultcontrol/pkg/solana/runtime"
)

// CreateVaultRequest carries everything needed to submit create_vault.
type CreateVaultRequest struct {
	ProgramID   solana.PublicKey
	Mint        solana.PublicKey
	Name        string
	ProfitShare uint32
	Fee         uint32
	Manager     solana.PrivateKey
	Payer       solana.PrivateKey
}

type CreateVaultResult struct {
	Signature    solana.Signature `json:"signature"`
	Vault        PDAResult        `json:"vault"`
	TokenAccount PDAResult        `json:"token_account"`
}

// CreateVault signs create_vault with the manager and payer keys and
// submits it to bank.
func CreateVault(ctx context.Context, bank *runtime.Bank, req CreateVaultRequest) (*CreateVaultResult, error) {
	name, err := EncodeName(req.Name)
	if err != nil {
		return nil, err
	}

	plan, err := PlanCreateVault(req.ProgramID, req.Mint, req.Manager.PublicKey(), req.Payer.PublicKey(), name, req.ProfitShare, req.Fee)
	if err != nil {
		return nil, err
	}

	signature, err := bank.Submit(ctx, []solana.Instruction{plan.Instruction}, req.Payer.PublicKey(), req.Payer, req.Manager)
	if err != nil {
		return nil, err
	}

	return &CreateVaultResult{
		Signature:    signature,
		Vault:        plan.Vault,
		TokenAccount: plan.TokenAccount,
	}, nil
}
