package handlers

import (
	"math/big"

	"github.com/shopspring/decimal"

	"vaultcontrol/pkg/solana/vault"
)

// LamportsPerSOL 每个 SOL 的 lamports 数量
const LamportsPerSOL = 1_000_000_000

var lamportsPerSOL = decimal.NewFromInt(LamportsPerSOL)

// ToSOL renders lamports as a SOL amount.
func ToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(lamportsPerSOL)
}

// FromSOL converts a SOL amount to lamports, truncating below one lamport.
func FromSOL(sol decimal.Decimal) uint64 {
	return sol.Mul(lamportsPerSOL).Truncate(0).BigInt().Uint64()
}

// CreateVaultRequest 创建 vault 请求
type CreateVaultRequest struct {
	Name        string `json:"name" binding:"required"`
	Mint        string `json:"mint" binding:"required"`
	Manager     string `json:"manager" binding:"required"`
	Payer       string `json:"payer"`
	ProfitShare uint32 `json:"profit_share"`
	Fee         uint32 `json:"fee"`
}

// CreateVaultResponse 创建 vault 响应
type CreateVaultResponse struct {
	Signature    string          `json:"signature"`
	Vault        vault.VaultInfo `json:"vault"`
	VaultBump    uint8           `json:"vault_bump"`
	TokenAccount vault.PDAResult `json:"token_account"`
}

// DeriveVaultResponse 推导 vault 地址响应
type DeriveVaultResponse struct {
	Name         string          `json:"name"`
	ProgramID    string          `json:"program_id"`
	Vault        vault.PDAResult `json:"vault"`
	TokenAccount vault.PDAResult `json:"token_account"`
	Space        int             `json:"space"`
	RentLamports uint64          `json:"rent_lamports"`
	RentSOL      decimal.Decimal `json:"rent_sol"`
}

// TVLResponse 总锁仓量响应
type TVLResponse struct {
	Vaults int               `json:"vaults"`
	Tvl    uint64            `json:"tvl"`
	TvlSOL decimal.Decimal   `json:"tvl_sol"`
	List   []vault.VaultInfo `json:"list,omitempty"`
}

// AirdropRequest 空投请求, 金额以 SOL 表示
type AirdropRequest struct {
	Address string          `json:"address" binding:"required"`
	Amount  decimal.Decimal `json:"amount"`
}

// AccountResponse 账户信息响应
type AccountResponse struct {
	Address    string          `json:"address"`
	Owner      string          `json:"owner"`
	Lamports   uint64          `json:"lamports"`
	Balance    decimal.Decimal `json:"balance"`
	DataLength int             `json:"data_length"`
	Executable bool            `json:"executable"`
}

// CreateMintRequest 创建代币 mint 请求
type CreateMintRequest struct {
	Payer     string `json:"payer" binding:"required"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
}

// CreateMintResponse 创建代币 mint 响应
type CreateMintResponse struct {
	Signature string `json:"signature"`
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
}

// KeyResponse 密钥响应
type KeyResponse struct {
	Address string `json:"address"`
}
