package runtime

import (
	"encoding/binary"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"vaultcontrol/pkg/ledger"
)

// System instruction indexes, encoded as a little-endian uint32 prefix.
const (
	systemCreateAccount uint32 = 0
	systemAssign        uint32 = 1
	systemTransfer      uint32 = 2
	systemAllocate      uint32 = 8
)

// SystemProgram allocates accounts and moves lamports between
// system-owned accounts.
type SystemProgram struct{}

func (SystemProgram) ID() solana.PublicKey { return solana.SystemProgramID }

// NewCreateAccountInstruction builds the system create-account instruction
// that allocates space bytes at newAccount for owner, funded by payer.
func NewCreateAccountInstruction(payer, newAccount, owner solana.PublicKey, lamports, space uint64) solana.Instruction {
	return system.NewCreateAccountInstruction(lamports, space, owner, payer, newAccount).Build()
}

func NewTransferInstruction(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	return system.NewTransferInstruction(lamports, from, to).Build()
}

// NewAllocateInstruction gives a data-less system account space bytes.
func NewAllocateInstruction(account solana.PublicKey, space uint64) solana.Instruction {
	return system.NewAllocateInstruction(space, account).Build()
}

// NewAssignInstruction hands a system account over to owner.
func NewAssignInstruction(account, owner solana.PublicKey) solana.Instruction {
	return system.NewAssignInstruction(owner, account).Build()
}

func (p SystemProgram) Process(ic *InvokeContext, accounts []*solana.AccountMeta, data []byte) error {
	dec := bin.NewBinDecoder(data)
	kind, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
	}

	switch kind {
	case systemCreateAccount:
		lamports, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: lamports: %v", ErrInvalidInstructionData, err)
		}
		space, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: space: %v", ErrInvalidInstructionData, err)
		}
		ownerBytes, err := dec.ReadNBytes(solana.PublicKeyLength)
		if err != nil {
			return fmt.Errorf("%w: owner: %v", ErrInvalidInstructionData, err)
		}
		if len(accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		return p.createAccount(ic, accounts[0].PublicKey, accounts[1].PublicKey, solana.PublicKeyFromBytes(ownerBytes), lamports, space)
	case systemTransfer:
		lamports, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: lamports: %v", ErrInvalidInstructionData, err)
		}
		if len(accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		return p.transfer(ic, accounts[0].PublicKey, accounts[1].PublicKey, lamports)
	case systemAllocate:
		space, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: space: %v", ErrInvalidInstructionData, err)
		}
		if len(accounts) < 1 {
			return ErrNotEnoughAccountKeys
		}
		return p.allocate(ic, accounts[0].PublicKey, space)
	case systemAssign:
		ownerBytes, err := dec.ReadNBytes(solana.PublicKeyLength)
		if err != nil {
			return fmt.Errorf("%w: owner: %v", ErrInvalidInstructionData, err)
		}
		if len(accounts) < 1 {
			return ErrNotEnoughAccountKeys
		}
		return p.assign(ic, accounts[0].PublicKey, solana.PublicKeyFromBytes(ownerBytes))
	default:
		return fmt.Errorf("%w: unsupported system instruction %d", ErrInvalidInstructionData, kind)
	}
}

func (p SystemProgram) createAccount(ic *InvokeContext, from, to, owner solana.PublicKey, lamports, space uint64) error {
	if !ic.IsSigner(from) {
		return fmt.Errorf("%w: funding account %s", ErrMissingSignature, from)
	}
	if !ic.IsSigner(to) {
		return fmt.Errorf("%w: new account %s", ErrMissingSignature, to)
	}

	exists, err := ic.AccountExists(to)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, to)
	}

	payer, err := p.debit(ic, from, lamports)
	if err != nil {
		return err
	}
	if err := ic.putSystemAccount(payer); err != nil {
		return err
	}

	return ic.createAccount(&ledger.Account{
		Address:  to,
		Owner:    owner,
		Lamports: lamports,
		Data:     make([]byte, space),
	})
}

func (p SystemProgram) transfer(ic *InvokeContext, from, to solana.PublicKey, lamports uint64) error {
	if !ic.IsSigner(from) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, from)
	}

	source, err := p.debit(ic, from, lamports)
	if err != nil {
		return err
	}
	if err := ic.putSystemAccount(source); err != nil {
		return err
	}

	recipient, err := ic.GetAccount(to)
	if isNotFound(err) {
		return ic.createAccount(&ledger.Account{
			Address:  to,
			Owner:    solana.SystemProgramID,
			Lamports: lamports,
		})
	}
	if err != nil {
		return err
	}
	if recipient.Lamports > math.MaxUint64-lamports {
		return fmt.Errorf("%w: crediting %d to %s", ErrArithmeticOverflow, lamports, to)
	}
	recipient.Lamports += lamports
	return ic.putSystemAccount(recipient)
}

// loadUnallocated returns the system-owned, data-less account at address,
// or a zero-lamport one when nothing is stored there yet.
func (p SystemProgram) loadUnallocated(ic *InvokeContext, address solana.PublicKey) (*ledger.Account, bool, error) {
	account, err := ic.GetAccount(address)
	if isNotFound(err) {
		return &ledger.Account{Address: address, Owner: solana.SystemProgramID}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

func (p SystemProgram) allocate(ic *InvokeContext, address solana.PublicKey, space uint64) error {
	if !ic.IsSigner(address) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, address)
	}
	account, exists, err := p.loadUnallocated(ic, address)
	if err != nil {
		return err
	}
	if !account.Owner.Equals(solana.SystemProgramID) || len(account.Data) > 0 {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, address)
	}
	account.Data = make([]byte, space)
	if !exists {
		return ic.createAccount(account)
	}
	return ic.putSystemAccount(account)
}

func (p SystemProgram) assign(ic *InvokeContext, address, owner solana.PublicKey) error {
	if !ic.IsSigner(address) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, address)
	}
	account, exists, err := p.loadUnallocated(ic, address)
	if err != nil {
		return err
	}
	if account.Owner.Equals(owner) {
		return nil
	}
	if !account.Owner.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: %s is owned by %s", ErrIllegalOwner, address, account.Owner)
	}
	account.Owner = owner
	if !exists {
		return ic.createAccount(account)
	}
	return ic.putSystemAccount(account)
}

// debit loads a system-owned account and subtracts lamports from it.
func (p SystemProgram) debit(ic *InvokeContext, address solana.PublicKey, lamports uint64) (*ledger.Account, error) {
	account, err := ic.GetAccount(address)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s has no balance, needs %d", ErrInsufficientFunds, address, lamports)
	}
	if err != nil {
		return nil, err
	}
	if !account.Owner.Equals(solana.SystemProgramID) {
		return nil, fmt.Errorf("%w: %s cannot fund from a non-system account", ErrIllegalOwner, address)
	}
	if account.Lamports < lamports {
		return nil, fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, address, account.Lamports, lamports)
	}
	account.Lamports -= lamports
	return account, nil
}
