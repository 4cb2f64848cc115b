package vault

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"

	"vaultcontrol/pkg/ledger"
	"vaultcontrol/pkg/solana/runtime"
)

// Program is the vault program as executed by a runtime.Bank.
type Program struct {
	id solana.PublicKey
}

func NewProgram(programID solana.PublicKey) *Program {
	return &Program{id: programID}
}

func (p *Program) ID() solana.PublicKey { return p.id }

func (p *Program) Process(ic *runtime.InvokeContext, accounts []*solana.AccountMeta, data []byte) error {
	args, err := DecodeCreateVaultData(data)
	if err != nil {
		return err
	}
	if len(accounts) < createVaultAccountCount {
		return fmt.Errorf("create_vault: %w: got %d, want %d", runtime.ErrNotEnoughAccountKeys, len(accounts), createVaultAccountCount)
	}
	return p.createVault(ic, CreateVaultAccounts{
		Vault:        accounts[0].PublicKey,
		TokenAccount: accounts[1].PublicKey,
		TokenMint:    accounts[2].PublicKey,
		Manager:      accounts[3].PublicKey,
		Payer:        accounts[4].PublicKey,
	}, accounts[5].PublicKey, accounts[6].PublicKey, args)
}

func (p *Program) createVault(ic *runtime.InvokeContext, accts CreateVaultAccounts, systemProgram, tokenProgram solana.PublicKey, args *CreateVaultArgs) error {
	if !ic.IsSigner(accts.Manager) {
		return fmt.Errorf("%w: %w: manager %s", ErrUnauthorized, ErrMissingSignature, accts.Manager)
	}
	if !ic.IsSigner(accts.Payer) {
		return fmt.Errorf("%w: %w: payer %s", ErrUnauthorized, ErrMissingSignature, accts.Payer)
	}
	if !systemProgram.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: system program %s", ErrInvalidProgram, systemProgram)
	}
	if !tokenProgram.Equals(solana.TokenProgramID) {
		return fmt.Errorf("%w: token program %s", ErrInvalidProgram, tokenProgram)
	}
	if isZeroName(args.Name) {
		return fmt.Errorf("%w: name is all zero", ErrInvalidName)
	}

	vaultPDA, err := FindVaultAddress(p.id, args.Name)
	if err != nil {
		return err
	}
	if !vaultPDA.Address.Equals(accts.Vault) {
		return fmt.Errorf("%w: vault %s, expected %s", ErrInvalidAccount, accts.Vault, vaultPDA.Address)
	}
	tokenPDA, err := FindVaultTokenAccountAddress(p.id, vaultPDA.Address)
	if err != nil {
		return err
	}
	if !tokenPDA.Address.Equals(accts.TokenAccount) {
		return fmt.Errorf("%w: token account %s, expected %s", ErrInvalidAccount, accts.TokenAccount, tokenPDA.Address)
	}

	if _, err := runtime.LoadMint(ic, accts.TokenMint); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTokenDescriptor, err)
	}

	vaultRent := ic.Rent().MinimumBalance(Space)
	tokenRent := ic.Rent().MinimumBalance(runtime.TokenAccountSize)
	vaultFunded, err := prefundedLamports(ic, vaultPDA.Address)
	if err != nil {
		return err
	}
	tokenFunded, err := prefundedLamports(ic, tokenPDA.Address)
	if err != nil {
		return err
	}
	if err := requireBalance(ic, accts.Payer, shortfall(vaultRent, vaultFunded)+shortfall(tokenRent, tokenFunded)); err != nil {
		return err
	}

	err = initAccount(ic, accts.Payer, vaultPDA.Address, p.id, Space, vaultRent, vaultFunded,
		VaultSignerSeeds(args.Name, vaultPDA.Bump))
	if err != nil {
		return fmt.Errorf("failed to allocate vault: %w", err)
	}

	err = initAccount(ic, accts.Payer, tokenPDA.Address, solana.TokenProgramID, runtime.TokenAccountSize, tokenRent, tokenFunded,
		TokenAccountSignerSeeds(vaultPDA.Address, tokenPDA.Bump))
	if err != nil {
		return fmt.Errorf("failed to allocate vault token account: %w", err)
	}

	err = ic.Invoke(runtime.NewInitializeAccountInstruction(tokenPDA.Address, accts.TokenMint, vaultPDA.Address))
	if err != nil {
		return fmt.Errorf("failed to initialize vault token account: %w", err)
	}

	record := &Vault{
		Bump:         vaultPDA.Bump,
		Name:         args.Name,
		Pubkey:       vaultPDA.Address,
		Manager:      accts.Manager,
		TokenAccount: tokenPDA.Address,
		Fee:          FeeFromArg(args.Fee),
		Ts:           ic.Clock().UnixTimestamp,
	}
	encoded, err := record.Encode()
	if err != nil {
		return err
	}

	account, err := ic.GetAccount(vaultPDA.Address)
	if err != nil {
		return err
	}
	account.Data = encoded
	if err := ic.PutAccount(account); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}

	log.WithFields(log.Fields{
		"vault":        vaultPDA.Address.String(),
		"name":         DecodeName(args.Name),
		"manager":      accts.Manager.String(),
		"fee":          record.Fee,
		"profit_share": args.ProfitShare,
	}).Debug("vault initialized, profit_share is not persisted")
	return nil
}

// prefundedLamports returns the balance already held at a derived address.
// Only a missing account or a system-owned one without data counts as
// unallocated; anything else means the address is taken.
func prefundedLamports(ic *runtime.InvokeContext, address solana.PublicKey) (uint64, error) {
	account, err := ic.GetAccount(address)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !account.Owner.Equals(solana.SystemProgramID) || len(account.Data) > 0 {
		return 0, fmt.Errorf("%w: %s", ErrAccountAlreadyExists, address)
	}
	return account.Lamports, nil
}

func shortfall(rent, funded uint64) uint64 {
	if funded >= rent {
		return 0
	}
	return rent - funded
}

// initAccount allocates space bytes at a derived address and assigns it to
// owner. An address already holding lamports is topped up to rent exemption,
// then allocated and assigned in place.
func initAccount(ic *runtime.InvokeContext, payer, address, owner solana.PublicKey, space int, rent, funded uint64, seeds runtime.SignerSeeds) error {
	exists, err := ic.AccountExists(address)
	if err != nil {
		return err
	}
	if !exists {
		return ic.InvokeSigned(runtime.NewCreateAccountInstruction(payer, address, owner, rent, uint64(space)), seeds)
	}
	if topUp := shortfall(rent, funded); topUp > 0 {
		if err := ic.Invoke(runtime.NewTransferInstruction(payer, address, topUp)); err != nil {
			return err
		}
	}
	if err := ic.InvokeSigned(runtime.NewAllocateInstruction(address, uint64(space)), seeds); err != nil {
		return err
	}
	return ic.InvokeSigned(runtime.NewAssignInstruction(address, owner), seeds)
}

func requireBalance(ic *runtime.InvokeContext, payer solana.PublicKey, lamports uint64) error {
	account, err := ic.GetAccount(payer)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return fmt.Errorf("%w: payer %s has no balance, needs %d", ErrInsufficientFunds, payer, lamports)
	}
	if err != nil {
		return err
	}
	if account.Lamports < lamports {
		return fmt.Errorf("%w: payer %s has %d, needs %d", ErrInsufficientFunds, payer, account.Lamports, lamports)
	}
	return nil
}
