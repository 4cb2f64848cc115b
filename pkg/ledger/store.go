package ledger

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrRecordNotFound       = errors.New("transaction record not found")
	ErrDuplicateRecord      = errors.New("transaction already processed")
)

// Account is a single keyed entry of the ledger.
type Account struct {
	Address    solana.PublicKey
	Owner      solana.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool
}

// Clone returns a deep copy so callers never share Data with the store.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.Data != nil {
		out.Data = make([]byte, len(a.Data))
		copy(out.Data, a.Data)
	}
	return &out
}

// Tx is a view of the ledger inside one atomic unit of work. Changes become
// visible to other readers only when the surrounding Update returns nil.
type Tx interface {
	// Get returns a copy of the account at address or ErrAccountNotFound.
	Get(address solana.PublicKey) (*Account, error)
	// Create inserts the account if no account exists at its address,
	// otherwise it returns ErrAccountAlreadyExists.
	Create(account *Account) error
	// Put overwrites an existing account.
	Put(account *Account) error
	// Record journals the transaction being committed. A signature can be
	// journaled once; repeats return ErrDuplicateRecord.
	Record(record Record) error
}

// Record is the journal entry of one committed transaction.
type Record struct {
	Signature solana.Signature
	Slot      uint64
	Payer     solana.PublicKey
}

// Store is the shared ledger: a transactional key-value map keyed by address.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	Get(ctx context.Context, address solana.PublicKey) (*Account, error)
	ListByOwner(ctx context.Context, owner solana.PublicKey) ([]*Account, error)
	GetRecord(ctx context.Context, signature solana.Signature) (*Record, error)
}
