package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"

	"vaultcontrol/pkg/ledger"
)

// Bank executes signed transactions against a ledger store. Each transaction
// is applied as one atomic unit: either all of its instructions take effect
// or none do.
type Bank struct {
	store    ledger.Store
	programs map[solana.PublicKey]Program
	rent     Rent
	now      func() time.Time
	slot     atomic.Uint64
	metrics  *Metrics
	notifier *Notifier
}

type Option func(*Bank)

func WithRent(rent Rent) Option {
	return func(b *Bank) { b.rent = rent }
}

func WithClock(now func() time.Time) Option {
	return func(b *Bank) { b.now = now }
}

func WithMetrics(metrics *Metrics) Option {
	return func(b *Bank) { b.metrics = metrics }
}

// WithProgram registers an additional program at construction time.
func WithProgram(program Program) Option {
	return func(b *Bank) { b.programs[program.ID()] = program }
}

// NewBank creates a bank over store with the system and token programs
// already registered.
func NewBank(store ledger.Store, opts ...Option) *Bank {
	b := &Bank{
		store:    store,
		programs: make(map[solana.PublicKey]Program),
		rent:     DefaultRent(),
		now:      time.Now,
		notifier: NewNotifier(),
	}
	b.programs[solana.SystemProgramID] = SystemProgram{}
	b.programs[solana.TokenProgramID] = TokenProgram{}

	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bank) Store() ledger.Store { return b.store }

func (b *Bank) Rent() Rent { return b.rent }

func (b *Bank) Notifier() *Notifier { return b.notifier }

// Slot returns the slot of the last processed transaction.
func (b *Bank) Slot() uint64 { return b.slot.Load() }

// LatestBlockhash returns a hash bound to the current slot for clients to
// put into new transactions.
func (b *Bank) LatestBlockhash() solana.Hash {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], b.slot.Load())
	return solana.Hash(sha256.Sum256(buf[:]))
}

// ProcessTransaction verifies the transaction signatures and executes every
// instruction in one ledger transaction.
func (b *Bank) ProcessTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	start := time.Now()
	signature, err := b.processTransaction(ctx, tx)
	b.metrics.ObserveTransaction(err, time.Since(start))
	return signature, err
}

func (b *Bank) processTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if tx == nil || len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("%w: transaction carries no signatures", ErrMissingSignature)
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	msg := tx.Message
	keys := msg.AccountKeys
	numSigners := int(msg.Header.NumRequiredSignatures)
	if numSigners == 0 || numSigners > len(keys) {
		return solana.Signature{}, fmt.Errorf("%w: bad message header", ErrMissingSignature)
	}

	signature := tx.Signatures[0]
	slot := b.slot.Add(1)
	exec := &execution{
		ctx:     ctx,
		bank:    b,
		clock:   Clock{Slot: slot, UnixTimestamp: b.now().Unix()},
		touched: make(map[solana.PublicKey]*ledger.Account),
	}

	err := b.store.Update(ctx, func(ltx ledger.Tx) error {
		exec.tx = ltx
		for i, inst := range msg.Instructions {
			if int(inst.ProgramIDIndex) >= len(keys) {
				return fmt.Errorf("instruction %d: %w: program index %d", i, ErrNotEnoughAccountKeys, inst.ProgramIDIndex)
			}
			metas := make([]*solana.AccountMeta, 0, len(inst.Accounts))
			for _, idx := range inst.Accounts {
				if int(idx) >= len(keys) {
					return fmt.Errorf("instruction %d: %w: account index %d", i, ErrNotEnoughAccountKeys, idx)
				}
				metas = append(metas, &solana.AccountMeta{
					PublicKey:  keys[idx],
					IsSigner:   int(idx) < numSigners,
					IsWritable: isWritableIndex(msg.Header, int(idx), len(keys)),
				})
			}
			if err := b.dispatch(exec, keys[inst.ProgramIDIndex], metas, inst.Data, 1); err != nil {
				return fmt.Errorf("instruction %d: %w", i, err)
			}
		}
		return ltx.Record(ledger.Record{
			Signature: signature,
			Slot:      slot,
			Payer:     keys[0],
		})
	})
	if err != nil {
		log.WithFields(log.Fields{
			"signature": signature.String(),
			"slot":      slot,
			"error":     err.Error(),
		}).Debug("transaction rejected")
		return solana.Signature{}, err
	}

	log.WithFields(log.Fields{
		"signature": signature.String(),
		"slot":      slot,
		"accounts":  len(exec.touched),
	}).Debug("transaction committed")

	for _, account := range exec.touched {
		b.notifier.Publish(AccountUpdate{
			Address:   account.Address,
			Owner:     account.Owner,
			Lamports:  account.Lamports,
			Slot:      slot,
			Signature: signature,
		})
	}
	return signature, nil
}

func (b *Bank) dispatch(exec *execution, programID solana.PublicKey, accounts []*solana.AccountMeta, data []byte, depth int) error {
	program, ok := b.programs[programID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, programID)
	}

	ic := newInvokeContext(exec, programID, accounts, depth)
	err := program.Process(ic, accounts, data)
	b.metrics.ObserveInstruction(programID, err)
	return err
}

// Airdrop credits lamports to a system account, creating it when missing.
// It bypasses transaction processing and exists to fund local ledgers.
func (b *Bank) Airdrop(ctx context.Context, to solana.PublicKey, lamports uint64) (*ledger.Account, error) {
	var result *ledger.Account
	err := b.store.Update(ctx, func(tx ledger.Tx) error {
		account, err := tx.Get(to)
		if isNotFound(err) {
			result = &ledger.Account{Address: to, Owner: solana.SystemProgramID, Lamports: lamports}
			return tx.Create(result)
		}
		if err != nil {
			return err
		}
		if !account.Owner.Equals(solana.SystemProgramID) {
			return fmt.Errorf("%w: airdrop target %s", ErrIllegalOwner, to)
		}
		if account.Lamports > math.MaxUint64-lamports {
			return fmt.Errorf("%w: airdrop of %d to %s", ErrArithmeticOverflow, lamports, to)
		}
		account.Lamports += lamports
		result = account
		return tx.Put(account)
	})
	if err != nil {
		return nil, err
	}
	b.notifier.Publish(AccountUpdate{
		Address:  result.Address,
		Owner:    result.Owner,
		Lamports: result.Lamports,
		Slot:     b.Slot(),
	})
	return result, nil
}

// isWritableIndex applies the message header rules: signed accounts come
// first, read-only entries sit at the end of each group.
func isWritableIndex(header solana.MessageHeader, idx, numKeys int) bool {
	numSigners := int(header.NumRequiredSignatures)
	if idx < numSigners {
		return idx < numSigners-int(header.NumReadonlySignedAccounts)
	}
	return idx < numKeys-int(header.NumReadonlyUnsignedAccounts)
}

func isNotFound(err error) bool {
	return errors.Is(err, ledger.ErrAccountNotFound)
}
