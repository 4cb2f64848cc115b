package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// MemoryStore keeps the ledger in process memory. Updates are serialized by
// a single lock, which gives every transaction a consistent snapshot.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*Account
	records  map[solana.Signature]Record
}

// NewMemoryStore creates an empty in-memory ledger
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[solana.PublicKey]*Account),
		records:  make(map[solana.Signature]Record),
	}
}

func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		base:      s.accounts,
		staged:    make(map[solana.PublicKey]*Account),
		journaled: s.records,
	}
	if err := fn(tx); err != nil {
		return err
	}

	for address, account := range tx.staged {
		s.accounts[address] = account
	}
	for _, record := range tx.records {
		s.records[record.Signature] = record
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, address solana.PublicKey) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	return account.Clone(), nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, owner solana.PublicKey) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Account
	for _, account := range s.accounts {
		if account.Owner.Equals(owner) {
			out = append(out, account.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out, nil
}

func (s *MemoryStore) GetRecord(ctx context.Context, signature solana.Signature) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[signature]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, signature)
	}
	return &record, nil
}

type memoryTx struct {
	base      map[solana.PublicKey]*Account
	staged    map[solana.PublicKey]*Account
	journaled map[solana.Signature]Record
	records   []Record
}

func (tx *memoryTx) lookup(address solana.PublicKey) (*Account, bool) {
	if account, ok := tx.staged[address]; ok {
		return account, true
	}
	account, ok := tx.base[address]
	return account, ok
}

func (tx *memoryTx) Get(address solana.PublicKey) (*Account, error) {
	account, ok := tx.lookup(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	return account.Clone(), nil
}

func (tx *memoryTx) Create(account *Account) error {
	if _, ok := tx.lookup(account.Address); ok {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, account.Address)
	}
	tx.staged[account.Address] = account.Clone()
	return nil
}

func (tx *memoryTx) Put(account *Account) error {
	if _, ok := tx.lookup(account.Address); !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, account.Address)
	}
	tx.staged[account.Address] = account.Clone()
	return nil
}

func (tx *memoryTx) Record(record Record) error {
	if _, ok := tx.journaled[record.Signature]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, record.Signature)
	}
	for _, staged := range tx.records {
		if staged.Signature == record.Signature {
			return fmt.Errorf("%w: %s", ErrDuplicateRecord, record.Signature)
		}
	}
	tx.records = append(tx.records, record)
	return nil
}
