package runtime

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"vaultcontrol/pkg/ledger"
)

// MaxInvokeDepth bounds nested cross-program invocations.
const MaxInvokeDepth = 4

// Clock is the ledger time observed by every instruction of a transaction.
type Clock struct {
	Slot          uint64
	UnixTimestamp int64
}

// Program is an on-ledger program the Bank can dispatch instructions to.
type Program interface {
	ID() solana.PublicKey
	Process(ic *InvokeContext, accounts []*solana.AccountMeta, data []byte) error
}

// SignerSeeds are the seeds (bump included) of a program derived address.
// A program passes them to InvokeSigned to authorize on behalf of the PDA;
// they are checked by recomputing the address, no private key is involved.
type SignerSeeds [][]byte

// Address recomputes the PDA the seeds stand for under programID.
func (s SignerSeeds) Address(programID solana.PublicKey) (solana.PublicKey, error) {
	address, err := solana.CreateProgramAddress(s, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
	}
	return address, nil
}

// execution is the state shared by all invocations of one transaction.
type execution struct {
	ctx     context.Context
	bank    *Bank
	tx      ledger.Tx
	clock   Clock
	touched map[solana.PublicKey]*ledger.Account
}

func (e *execution) touch(account *ledger.Account) {
	e.touched[account.Address] = account.Clone()
}

// InvokeContext is what a program sees while it processes one instruction.
type InvokeContext struct {
	exec      *execution
	programID solana.PublicKey
	signers   map[solana.PublicKey]bool
	writable  map[solana.PublicKey]bool
	depth     int
}

func newInvokeContext(exec *execution, programID solana.PublicKey, accounts []*solana.AccountMeta, depth int) *InvokeContext {
	ic := &InvokeContext{
		exec:      exec,
		programID: programID,
		signers:   make(map[solana.PublicKey]bool),
		writable:  make(map[solana.PublicKey]bool),
		depth:     depth,
	}
	for _, meta := range accounts {
		if meta.IsSigner {
			ic.signers[meta.PublicKey] = true
		}
		if meta.IsWritable {
			ic.writable[meta.PublicKey] = true
		}
	}
	return ic
}

func (ic *InvokeContext) Context() context.Context { return ic.exec.ctx }

func (ic *InvokeContext) ProgramID() solana.PublicKey { return ic.programID }

func (ic *InvokeContext) Clock() Clock { return ic.exec.clock }

func (ic *InvokeContext) Rent() Rent { return ic.exec.bank.rent }

// IsSigner reports whether the key authorized the current instruction.
func (ic *InvokeContext) IsSigner(key solana.PublicKey) bool {
	return ic.signers[key]
}

func (ic *InvokeContext) IsWritable(key solana.PublicKey) bool {
	return ic.writable[key]
}

// GetAccount returns a copy of the account as seen by the running transaction.
func (ic *InvokeContext) GetAccount(address solana.PublicKey) (*ledger.Account, error) {
	return ic.exec.tx.Get(address)
}

// AccountExists reports whether an account is allocated at address.
func (ic *InvokeContext) AccountExists(address solana.PublicKey) (bool, error) {
	_, err := ic.exec.tx.Get(address)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// PutAccount stores an account owned by the running program. Only writable
// accounts of the instruction may be changed.
func (ic *InvokeContext) PutAccount(account *ledger.Account) error {
	if !ic.writable[account.Address] {
		return fmt.Errorf("%w: %s", ErrReadonlyAccount, account.Address)
	}
	current, err := ic.exec.tx.Get(account.Address)
	if err != nil {
		return err
	}
	if !current.Owner.Equals(ic.programID) {
		return fmt.Errorf("%w: %s is owned by %s", ErrIllegalOwner, account.Address, current.Owner)
	}
	if err := ic.exec.tx.Put(account); err != nil {
		return err
	}
	ic.exec.touch(account)
	return nil
}

// createAccount allocates a brand new account; used by the system program.
func (ic *InvokeContext) createAccount(account *ledger.Account) error {
	if err := ic.exec.tx.Create(account); err != nil {
		return err
	}
	ic.exec.touch(account)
	return nil
}

// putSystemAccount updates an account regardless of the running program.
// The system program uses it to debit and credit lamports.
func (ic *InvokeContext) putSystemAccount(account *ledger.Account) error {
	if !ic.writable[account.Address] {
		return fmt.Errorf("%w: %s", ErrReadonlyAccount, account.Address)
	}
	if err := ic.exec.tx.Put(account); err != nil {
		return err
	}
	ic.exec.touch(account)
	return nil
}

// Invoke runs ix as a cross-program invocation with the caller's signers.
func (ic *InvokeContext) Invoke(ix solana.Instruction) error {
	return ic.InvokeSigned(ix)
}

// InvokeSigned runs ix as a cross-program invocation. Each entry of
// signerSeeds authorizes the PDA it derives to under the calling program.
func (ic *InvokeContext) InvokeSigned(ix solana.Instruction, signerSeeds ...SignerSeeds) error {
	if ic.depth+1 > MaxInvokeDepth {
		return ErrCallDepth
	}

	pdaSigners := make(map[solana.PublicKey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		address, err := seeds.Address(ic.programID)
		if err != nil {
			return err
		}
		pdaSigners[address] = true
	}

	accounts := ix.Accounts()
	for _, meta := range accounts {
		if meta.IsSigner && !ic.signers[meta.PublicKey] && !pdaSigners[meta.PublicKey] {
			return fmt.Errorf("%w: %s", ErrMissingSignature, meta.PublicKey)
		}
		if meta.IsWritable && !ic.writable[meta.PublicKey] && !pdaSigners[meta.PublicKey] {
			return fmt.Errorf("%w: %s", ErrReadonlyAccount, meta.PublicKey)
		}
	}

	data, err := ix.Data()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
	}
	return ic.exec.bank.dispatch(ic.exec, ix.ProgramID(), accounts, data, ic.depth+1)
}
