package runtime

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultcontrol/pkg/ledger"
)

const airdropAmount = 10_000_000_000

// pdaProgram creates an account at the PDA derived from its seed, exercising
// InvokeSigned the way an on-ledger program would.
type pdaProgram struct {
	id        solana.PublicKey
	seed      []byte
	forgeSeed bool
}

func (p pdaProgram) ID() solana.PublicKey { return p.id }

func (p pdaProgram) Process(ic *InvokeContext, accounts []*solana.AccountMeta, data []byte) error {
	payer, target := accounts[0].PublicKey, accounts[1].PublicKey
	_, bump, err := solana.FindProgramAddress([][]byte{p.seed}, p.id)
	if err != nil {
		return err
	}
	seeds := SignerSeeds{p.seed, {bump}}
	if p.forgeSeed {
		seeds = SignerSeeds{[]byte("other"), {bump}}
	}
	ix := NewCreateAccountInstruction(payer, target, p.id, ic.Rent().MinimumBalance(8), 8)
	return ic.InvokeSigned(ix, seeds)
}

func newTestBank(t *testing.T, opts ...Option) (*Bank, solana.PrivateKey) {
	t.Helper()
	bank := NewBank(ledger.NewMemoryStore(), opts...)
	payer := solana.NewWallet().PrivateKey
	_, err := bank.Airdrop(context.Background(), payer.PublicKey(), airdropAmount)
	require.NoError(t, err)
	return bank, payer
}

func lamportsOf(t *testing.T, bank *Bank, address solana.PublicKey) uint64 {
	t.Helper()
	account, err := bank.Store().Get(context.Background(), address)
	require.NoError(t, err)
	return account.Lamports
}

func TestRent(t *testing.T) {
	rent := DefaultRent()
	assert.Equal(t, uint64(890880), rent.MinimumBalance(0))
	assert.Equal(t, uint64((128+165)*3480*2), rent.MinimumBalance(TokenAccountSize))
}

func TestBank(t *testing.T) {
	ctx := context.Background()

	t.Run("Airdrop", func(t *testing.T) {
		bank, payer := newTestBank(t)
		_, err := bank.Airdrop(ctx, payer.PublicKey(), 5)
		require.NoError(t, err)
		assert.Equal(t, uint64(airdropAmount+5), lamportsOf(t, bank, payer.PublicKey()))
	})

	t.Run("Transfer", func(t *testing.T) {
		bank, payer := newTestBank(t)
		to := solana.NewWallet().PublicKey()

		sig, err := bank.Submit(ctx, []solana.Instruction{
			NewTransferInstruction(payer.PublicKey(), to, 1000),
		}, payer.PublicKey(), payer)
		require.NoError(t, err)

		assert.Equal(t, uint64(airdropAmount-1000), lamportsOf(t, bank, payer.PublicKey()))
		assert.Equal(t, uint64(1000), lamportsOf(t, bank, to))
		assert.Equal(t, uint64(1), bank.Slot())

		record, err := bank.Store().GetRecord(ctx, sig)
		require.NoError(t, err)
		assert.Equal(t, payer.PublicKey(), record.Payer)
	})

	t.Run("Credits that would overflow are rejected", func(t *testing.T) {
		bank, payer := newTestBank(t)
		rich := solana.NewWallet().PublicKey()
		_, err := bank.Airdrop(ctx, rich, math.MaxUint64-10)
		require.NoError(t, err)

		_, err = bank.Airdrop(ctx, rich, 11)
		assert.True(t, errors.Is(err, ErrArithmeticOverflow))

		_, err = bank.Submit(ctx, []solana.Instruction{
			NewTransferInstruction(payer.PublicKey(), rich, 100),
		}, payer.PublicKey(), payer)
		assert.True(t, errors.Is(err, ErrArithmeticOverflow))
		assert.Equal(t, uint64(math.MaxUint64-10), lamportsOf(t, bank, rich))
		assert.Equal(t, uint64(airdropAmount), lamportsOf(t, bank, payer.PublicKey()))
	})

	t.Run("Allocate and assign a funded account", func(t *testing.T) {
		bank, payer := newTestBank(t)
		holder := solana.NewWallet().PrivateKey
		owner := solana.NewWallet().PublicKey()

		_, err := bank.Submit(ctx, []solana.Instruction{
			NewTransferInstruction(payer.PublicKey(), holder.PublicKey(), 1000),
			NewAllocateInstruction(holder.PublicKey(), 16),
			NewAssignInstruction(holder.PublicKey(), owner),
		}, payer.PublicKey(), payer, holder)
		require.NoError(t, err)

		account, err := bank.Store().Get(ctx, holder.PublicKey())
		require.NoError(t, err)
		assert.Equal(t, owner, account.Owner)
		assert.Len(t, account.Data, 16)
		assert.Equal(t, uint64(1000), account.Lamports)

		_, err = bank.Submit(ctx, []solana.Instruction{
			NewAllocateInstruction(holder.PublicKey(), 8),
		}, payer.PublicKey(), payer, holder)
		assert.True(t, errors.Is(err, ErrAccountAlreadyExists))
	})

	t.Run("Allocate requires the account signature", func(t *testing.T) {
		bank, payer := newTestBank(t)
		target := solana.NewWallet().PublicKey()
		ix := solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{
			solana.Meta(target).WRITE(),
		}, []byte{8, 0, 0, 0, 16, 0, 0, 0, 0, 0, 0, 0})
		_, err := bank.Submit(ctx, []solana.Instruction{ix}, payer.PublicKey(), payer)
		assert.True(t, errors.Is(err, ErrMissingSignature))
	})

	t.Run("Tampered signature is rejected", func(t *testing.T) {
		bank, payer := newTestBank(t)
		tx, err := NewSignedTransaction([]solana.Instruction{
			NewTransferInstruction(payer.PublicKey(), solana.NewWallet().PublicKey(), 1),
		}, bank.LatestBlockhash(), payer.PublicKey(), payer)
		require.NoError(t, err)

		tx.Signatures[0][0] ^= 0xff
		_, err = bank.ProcessTransaction(ctx, tx)
		assert.True(t, errors.Is(err, ErrInvalidSignature))
		assert.Equal(t, uint64(airdropAmount), lamportsOf(t, bank, payer.PublicKey()))
	})

	t.Run("Unsigned transaction is rejected", func(t *testing.T) {
		bank, payer := newTestBank(t)
		tx, err := solana.NewTransaction([]solana.Instruction{
			NewTransferInstruction(payer.PublicKey(), solana.NewWallet().PublicKey(), 1),
		}, bank.LatestBlockhash(), solana.TransactionPayer(payer.PublicKey()))
		require.NoError(t, err)

		_, err = bank.ProcessTransaction(ctx, tx)
		assert.True(t, errors.Is(err, ErrMissingSignature))
	})

	t.Run("Replayed transaction is rejected", func(t *testing.T) {
		bank, payer := newTestBank(t)
		tx, err := NewSignedTransaction([]solana.Instruction{
			NewTransferInstruction(payer.PublicKey(), solana.NewWallet().PublicKey(), 1),
		}, bank.LatestBlockhash(), payer.PublicKey(), payer)
		require.NoError(t, err)

		_, err = bank.ProcessTransaction(ctx, tx)
		require.NoError(t, err)
		_, err = bank.ProcessTransaction(ctx, tx)
		assert.True(t, errors.Is(err, ErrAlreadyProcessed))
		assert.Equal(t, uint64(airdropAmount-1), lamportsOf(t, bank, payer.PublicKey()))
	})

	t.Run("Create account twice", func(t *testing.T) {
		bank, payer := newTestBank(t)
		account := solana.NewWallet().PrivateKey
		owner := solana.NewWallet().PublicKey()

		ix := NewCreateAccountInstruction(payer.PublicKey(), account.PublicKey(), owner, bank.Rent().MinimumBalance(16), 16)
		_, err := bank.Submit(ctx, []solana.Instruction{ix}, payer.PublicKey(), payer, account)
		require.NoError(t, err)

		created, err := bank.Store().Get(ctx, account.PublicKey())
		require.NoError(t, err)
		assert.Equal(t, owner, created.Owner)
		assert.Len(t, created.Data, 16)

		ix = NewCreateAccountInstruction(payer.PublicKey(), account.PublicKey(), owner, bank.Rent().MinimumBalance(32), 32)
		_, err = bank.Submit(ctx, []solana.Instruction{ix}, payer.PublicKey(), payer, account)
		assert.True(t, errors.Is(err, ErrAccountAlreadyExists))
	})

	t.Run("Failing instruction rolls back the transaction", func(t *testing.T) {
		bank, payer := newTestBank(t)
		to := solana.NewWallet().PublicKey()

		_, err := bank.Submit(ctx, []solana.Instruction{
			NewTransferInstruction(payer.PublicKey(), to, 1000),
			NewTransferInstruction(payer.PublicKey(), to, airdropAmount),
		}, payer.PublicKey(), payer)
		assert.True(t, errors.Is(err, ErrInsufficientFunds))

		assert.Equal(t, uint64(airdropAmount), lamportsOf(t, bank, payer.PublicKey()))
		_, err = bank.Store().Get(ctx, to)
		assert.True(t, errors.Is(err, ErrAccountNotFound))
	})

	t.Run("Unknown program", func(t *testing.T) {
		bank, payer := newTestBank(t)
		ix := solana.NewInstruction(solana.NewWallet().PublicKey(), solana.AccountMetaSlice{
			solana.Meta(payer.PublicKey()).WRITE().SIGNER(),
		}, []byte{1})
		_, err := bank.Submit(ctx, []solana.Instruction{ix}, payer.PublicKey(), payer)
		assert.True(t, errors.Is(err, ErrUnknownProgram))
	})

	t.Run("Create mint and token account", func(t *testing.T) {
		bank, payer := newTestBank(t)
		mint := solana.NewWallet().PrivateKey
		_, err := bank.CreateMint(ctx, payer, mint, payer.PublicKey(), 6)
		require.NoError(t, err)

		mintAccount, err := bank.Store().Get(ctx, mint.PublicKey())
		require.NoError(t, err)
		decoded, err := MintFromAccount(mintAccount)
		require.NoError(t, err)
		assert.Equal(t, uint8(6), decoded.Decimals)
		require.NotNil(t, decoded.MintAuthority)
		assert.Equal(t, payer.PublicKey(), *decoded.MintAuthority)

		holder := solana.NewWallet().PrivateKey
		owner := solana.NewWallet().PublicKey()
		_, err = bank.Submit(ctx, []solana.Instruction{
			NewCreateAccountInstruction(payer.PublicKey(), holder.PublicKey(), solana.TokenProgramID, bank.Rent().MinimumBalance(TokenAccountSize), TokenAccountSize),
			NewInitializeAccountInstruction(holder.PublicKey(), mint.PublicKey(), owner),
		}, payer.PublicKey(), payer, holder)
		require.NoError(t, err)

		holderAccount, err := bank.Store().Get(ctx, holder.PublicKey())
		require.NoError(t, err)
		tokenAccount, err := DecodeTokenAccount(holderAccount.Data)
		require.NoError(t, err)
		assert.Equal(t, mint.PublicKey(), tokenAccount.Mint)
		assert.Equal(t, owner, tokenAccount.Owner)
		assert.Equal(t, uint64(0), tokenAccount.Amount)
	})

	t.Run("Token account for a missing mint", func(t *testing.T) {
		bank, payer := newTestBank(t)
		holder := solana.NewWallet().PrivateKey
		_, err := bank.Submit(ctx, []solana.Instruction{
			NewCreateAccountInstruction(payer.PublicKey(), holder.PublicKey(), solana.TokenProgramID, bank.Rent().MinimumBalance(TokenAccountSize), TokenAccountSize),
			NewInitializeAccountInstruction(holder.PublicKey(), solana.NewWallet().PublicKey(), payer.PublicKey()),
		}, payer.PublicKey(), payer, holder)
		assert.True(t, errors.Is(err, ErrInvalidMint))

		_, err = bank.Store().Get(ctx, holder.PublicKey())
		assert.True(t, errors.Is(err, ErrAccountNotFound))
	})

	t.Run("Program signs for its derived address", func(t *testing.T) {
		program := pdaProgram{id: solana.NewWallet().PublicKey(), seed: []byte("pda")}
		bank, payer := newTestBank(t, WithProgram(program))
		pda, _, err := solana.FindProgramAddress([][]byte{program.seed}, program.id)
		require.NoError(t, err)

		ix := solana.NewInstruction(program.id, solana.AccountMetaSlice{
			solana.Meta(payer.PublicKey()).WRITE().SIGNER(),
			solana.Meta(pda).WRITE(),
			solana.Meta(solana.SystemProgramID),
		}, nil)
		_, err = bank.Submit(ctx, []solana.Instruction{ix}, payer.PublicKey(), payer)
		require.NoError(t, err)

		created, err := bank.Store().Get(ctx, pda)
		require.NoError(t, err)
		assert.Equal(t, program.id, created.Owner)
	})

	t.Run("Program cannot sign with foreign seeds", func(t *testing.T) {
		program := pdaProgram{id: solana.NewWallet().PublicKey(), seed: []byte("pda"), forgeSeed: true}
		bank, payer := newTestBank(t, WithProgram(program))
		pda, _, err := solana.FindProgramAddress([][]byte{program.seed}, program.id)
		require.NoError(t, err)

		ix := solana.NewInstruction(program.id, solana.AccountMetaSlice{
			solana.Meta(payer.PublicKey()).WRITE().SIGNER(),
			solana.Meta(pda).WRITE(),
			solana.Meta(solana.SystemProgramID),
		}, nil)
		_, err = bank.Submit(ctx, []solana.Instruction{ix}, payer.PublicKey(), payer)
		require.Error(t, err)

		_, err = bank.Store().Get(ctx, pda)
		assert.True(t, errors.Is(err, ErrAccountNotFound))
	})

	t.Run("Clock comes from the bank", func(t *testing.T) {
		fixed := time.Unix(1700000000, 0)
		bank, payer := newTestBank(t, WithClock(func() time.Time { return fixed }))
		exec := &execution{bank: bank, clock: Clock{UnixTimestamp: bank.now().Unix()}}
		ic := newInvokeContext(exec, solana.SystemProgramID, []*solana.AccountMeta{
			solana.Meta(payer.PublicKey()).SIGNER(),
		}, 1)
		assert.Equal(t, int64(1700000000), ic.Clock().UnixTimestamp)
		assert.True(t, ic.IsSigner(payer.PublicKey()))
		assert.False(t, ic.IsWritable(payer.PublicKey()))
	})
}

func TestNotifier(t *testing.T) {
	ctx := context.Background()
	bank, payer := newTestBank(t)
	updates, cancel := bank.Notifier().Subscribe(8)
	defer cancel()

	to := solana.NewWallet().PublicKey()
	_, err := bank.Submit(ctx, []solana.Instruction{
		NewTransferInstruction(payer.PublicKey(), to, 500),
	}, payer.PublicKey(), payer)
	require.NoError(t, err)

	seen := make(map[solana.PublicKey]uint64)
	for i := 0; i < 2; i++ {
		select {
		case update := <-updates:
			seen[update.Address] = update.Lamports
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for account update")
		}
	}
	assert.Equal(t, uint64(500), seen[to])
	assert.Equal(t, uint64(airdropAmount-500), seen[payer.PublicKey()])

	_, err = bank.Airdrop(ctx, to, 100)
	require.NoError(t, err)
	select {
	case update := <-updates:
		assert.Equal(t, to, update.Address)
		assert.Equal(t, uint64(600), update.Lamports)
		assert.Equal(t, solana.Signature{}, update.Signature)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for airdrop update")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	bank, payer := newTestBank(t, WithMetrics(metrics))
	_, err = bank.Submit(context.Background(), []solana.Instruction{
		NewTransferInstruction(payer.PublicKey(), solana.NewWallet().PublicKey(), 1),
	}, payer.PublicKey(), payer)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "vaultcontrol_bank_transactions_total")
	assert.Contains(t, names, "vaultcontrol_bank_instructions_total")

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveTransaction(nil, time.Millisecond) })
}
