package vault

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"vaultcontrol/pkg/solana/runtime"
)

// Vault 程序地址
var DefaultProgramID = solana.MustPublicKeyFromBase58("3pRCczvKX3eUmgwHpf9jLjoWykLw19CT2TXyisSweL5w")

// PDA 种子常量
var (
	SeedVault             = []byte("vault")
	SeedVaultTokenAccount = []byte("vault_token_account")
)

// PDAResult 表示 PDA 计算结果
type PDAResult struct {
	Address solana.PublicKey `json:"address"`
	Bump    uint8            `json:"bump"`
}

// FindVaultAddress derives the vault record address for name.
func FindVaultAddress(programID solana.PublicKey, name [NameLength]byte) (PDAResult, error) {
	seeds := [][]byte{SeedVault, name[:]}

	address, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return PDAResult{}, fmt.Errorf("failed to find vault PDA: %w", err)
	}

	return PDAResult{
		Address: address,
		Bump:    bump,
	}, nil
}

// FindVaultTokenAccountAddress derives the custody account address of a vault.
func FindVaultTokenAccountAddress(programID, vault solana.PublicKey) (PDAResult, error) {
	seeds := [][]byte{SeedVaultTokenAccount, vault[:]}

	address, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return PDAResult{}, fmt.Errorf("failed to find vault token account PDA: %w", err)
	}

	return PDAResult{
		Address: address,
		Bump:    bump,
	}, nil
}

// VaultSignerSeeds returns the seeds that let the program sign as the vault.
func VaultSignerSeeds(name [NameLength]byte, bump uint8) runtime.SignerSeeds {
	return runtime.SignerSeeds{SeedVault, name[:], {bump}}
}

// TokenAccountSignerSeeds returns the seeds that let the program sign as the
// vault custody account while it is being allocated.
func TokenAccountSignerSeeds(vault solana.PublicKey, bump uint8) runtime.SignerSeeds {
	return runtime.SignerSeeds{SeedVaultTokenAccount, vault[:], {bump}}
}
