package vault

import (
	"context"
	"encoding/hex"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultcontrol/pkg/ledger"
	"vaultcontrol/pkg/solana/runtime"
)

const fundAmount = 10_000_000_000

var testNow = time.Unix(1718000000, 0)

type fixture struct {
	bank    *runtime.Bank
	reader  *Reader
	program solana.PublicKey
	mint    solana.PublicKey
	manager solana.PrivateKey
	payer   solana.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	bank := runtime.NewBank(store,
		runtime.WithProgram(NewProgram(DefaultProgramID)),
		runtime.WithClock(func() time.Time { return testNow }),
	)

	f := &fixture{
		bank:    bank,
		reader:  NewReader(store, DefaultProgramID),
		program: DefaultProgramID,
		manager: solana.NewWallet().PrivateKey,
		payer:   solana.NewWallet().PrivateKey,
	}
	_, err := bank.Airdrop(ctx, f.payer.PublicKey(), fundAmount)
	require.NoError(t, err)

	mint := solana.NewWallet().PrivateKey
	_, err = bank.CreateMint(ctx, f.payer, mint, f.payer.PublicKey(), 6)
	require.NoError(t, err)
	f.mint = mint.PublicKey()
	return f
}

func (f *fixture) request(name string) CreateVaultRequest {
	return CreateVaultRequest{
		ProgramID:   f.program,
		Mint:        f.mint,
		Name:        name,
		ProfitShare: 2000,
		Fee:         100,
		Manager:     f.manager,
		Payer:       f.payer,
	}
}

func (f *fixture) submit(t *testing.T, ix solana.Instruction, signers ...solana.PrivateKey) error {
	t.Helper()
	_, err := f.bank.Submit(context.Background(), []solana.Instruction{ix}, f.payer.PublicKey(), signers...)
	return err
}

func (f *fixture) assertNoVault(t *testing.T, name string) {
	t.Helper()
	encoded, err := EncodeName(name)
	require.NoError(t, err)
	vaultPDA, err := FindVaultAddress(f.program, encoded)
	require.NoError(t, err)
	tokenPDA, err := FindVaultTokenAccountAddress(f.program, vaultPDA.Address)
	require.NoError(t, err)

	for _, address := range []solana.PublicKey{vaultPDA.Address, tokenPDA.Address} {
		_, err := f.bank.Store().Get(context.Background(), address)
		assert.True(t, errors.Is(err, ledger.ErrAccountNotFound), "account %s should not exist", address)
	}
}

// fundFromStranger sends lamports to address from an unrelated wallet.
func (f *fixture) fundFromStranger(t *testing.T, address solana.PublicKey, lamports uint64) {
	t.Helper()
	ctx := context.Background()
	stranger := solana.NewWallet().PrivateKey
	_, err := f.bank.Airdrop(ctx, stranger.PublicKey(), lamports+1_000_000)
	require.NoError(t, err)
	_, err = f.bank.Submit(ctx, []solana.Instruction{
		runtime.NewTransferInstruction(stranger.PublicKey(), address, lamports),
	}, stranger.PublicKey(), stranger)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, address solana.PublicKey) uint64 {
	t.Helper()
	account, err := f.bank.Store().Get(context.Background(), address)
	require.NoError(t, err)
	return account.Lamports
}

func mustName(t *testing.T, name string) [NameLength]byte {
	t.Helper()
	encoded, err := EncodeName(name)
	require.NoError(t, err)
	return encoded
}

func TestLayout(t *testing.T) {
	assert.Equal(t, 193, Space)
	assert.Equal(t, "d308e82b02987577", hex.EncodeToString(Discriminator[:]))
	assert.Equal(t, "1dedf7d0c1523687", hex.EncodeToString(CreateVaultDiscriminator[:]))

	t.Run("Encode is fixed size", func(t *testing.T) {
		for _, v := range []*Vault{
			{},
			{
				Bump:             255,
				Name:             mustName(t, "a vault name of exactly 32 bytes"),
				Pubkey:           solana.NewWallet().PublicKey(),
				TotalShares:      bin.Uint128{Lo: math.MaxUint64, Hi: math.MaxUint64},
				Fee:              math.MaxInt64,
				Ts:               -1,
				TotalDeposits:    math.MaxUint64,
				TotalWithdraws:   1,
				MinDepositAmount: 7,
			},
		} {
			data, err := v.Encode()
			require.NoError(t, err)
			assert.Len(t, data, Space)
		}
	})

	t.Run("Decode", func(t *testing.T) {
		v := &Vault{
			Bump:           254,
			Name:           mustName(t, "alpha"),
			Pubkey:         solana.NewWallet().PublicKey(),
			Manager:        solana.NewWallet().PublicKey(),
			TokenAccount:   solana.NewWallet().PublicKey(),
			TotalShares:    bin.Uint128{Lo: 5, Hi: 1},
			Fee:            100,
			Ts:             testNow.Unix(),
			TotalDeposits:  900,
			TotalWithdraws: 300,
		}
		data, err := v.Encode()
		require.NoError(t, err)
		assert.Equal(t, Discriminator[:], data[:8])
		assert.Equal(t, byte(254), data[8])

		decoded, err := DecodeVault(data)
		require.NoError(t, err)
		assert.Equal(t, v.Name, decoded.Name)
		assert.Equal(t, v.Pubkey, decoded.Pubkey)
		assert.Equal(t, v.Manager, decoded.Manager)
		assert.Equal(t, v.TokenAccount, decoded.TokenAccount)
		assert.Equal(t, uint64(5), decoded.TotalShares.Lo)
		assert.Equal(t, uint64(1), decoded.TotalShares.Hi)
		assert.Equal(t, "18446744073709551621", decoded.TotalSharesString())
		assert.Equal(t, uint64(600), decoded.TVL())
	})

	t.Run("Decode rejects foreign data", func(t *testing.T) {
		_, err := DecodeVault(make([]byte, Space))
		assert.True(t, errors.Is(err, ErrNotVault))

		_, err = DecodeVault(make([]byte, 10))
		assert.True(t, errors.Is(err, ErrNotVault))
	})

	t.Run("Instruction data", func(t *testing.T) {
		args := CreateVaultArgs{Name: mustName(t, "alpha"), ProfitShare: 2000, Fee: math.MaxUint32}
		data, err := EncodeCreateVaultData(args)
		require.NoError(t, err)
		assert.Len(t, data, 8+NameLength+4+4)

		decoded, err := DecodeCreateVaultData(data)
		require.NoError(t, err)
		assert.Equal(t, args, *decoded)

		_, err = DecodeCreateVaultData([]byte{1, 2, 3})
		assert.True(t, errors.Is(err, runtime.ErrInvalidInstructionData))
	})
}

func TestName(t *testing.T) {
	encoded, err := EncodeName("alpha")
	require.NoError(t, err)
	assert.Equal(t, byte('a'), encoded[0])
	assert.Equal(t, byte(' '), encoded[NameLength-1])
	assert.Equal(t, "alpha", DecodeName(encoded))

	var nulPadded [NameLength]byte
	copy(nulPadded[:], "beta")
	assert.Equal(t, "beta", DecodeName(nulPadded))

	for _, bad := range []string{"", "   ", "this name is far longer than thirty-two bytes"} {
		_, err := EncodeName(bad)
		assert.True(t, errors.Is(err, ErrInvalidName), "name %q", bad)
	}
}

func TestFeeFromArg(t *testing.T) {
	assert.Equal(t, int64(0), FeeFromArg(0))
	assert.Equal(t, int64(100), FeeFromArg(100))
	assert.Equal(t, int64(math.MaxUint32), FeeFromArg(math.MaxUint32))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, uint32(6000), uint32(ErrorCodeInvalidAccount))
	assert.Equal(t, uint32(6001), uint32(ErrorCodeUnauthorized))
	assert.Equal(t, uint32(6002), uint32(ErrorCodeInvalidPassType))
	assert.Contains(t, ErrorCodeUnauthorized.Error(), "Unauthorized access")

	wrapped := errors.Join(errors.New("context"), ErrInvalidAccount)
	code, ok := CodeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeInvalidAccount, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestDerivation(t *testing.T) {
	name := mustName(t, "alpha")

	t.Run("Deterministic", func(t *testing.T) {
		a, err := FindVaultAddress(DefaultProgramID, name)
		require.NoError(t, err)
		b, err := FindVaultAddress(DefaultProgramID, name)
		require.NoError(t, err)
		assert.Equal(t, a, b)

		ta, err := FindVaultTokenAccountAddress(DefaultProgramID, a.Address)
		require.NoError(t, err)
		tb, err := FindVaultTokenAccountAddress(DefaultProgramID, b.Address)
		require.NoError(t, err)
		assert.Equal(t, ta, tb)
	})

	t.Run("Distinct names give distinct addresses", func(t *testing.T) {
		a, err := FindVaultAddress(DefaultProgramID, name)
		require.NoError(t, err)
		b, err := FindVaultAddress(DefaultProgramID, mustName(t, "beta"))
		require.NoError(t, err)
		assert.NotEqual(t, a.Address, b.Address)

		other, err := FindVaultAddress(solana.NewWallet().PublicKey(), name)
		require.NoError(t, err)
		assert.NotEqual(t, a.Address, other.Address)
	})

	t.Run("Bump reproduces the address", func(t *testing.T) {
		pda, err := FindVaultAddress(DefaultProgramID, name)
		require.NoError(t, err)

		address, err := VaultSignerSeeds(name, pda.Bump).Address(DefaultProgramID)
		require.NoError(t, err)
		assert.Equal(t, pda.Address, address)

		token, err := FindVaultTokenAccountAddress(DefaultProgramID, pda.Address)
		require.NoError(t, err)
		address, err = TokenAccountSignerSeeds(pda.Address, token.Bump).Address(DefaultProgramID)
		require.NoError(t, err)
		assert.Equal(t, token.Address, address)
	})
}

func TestCreateVault(t *testing.T) {
	ctx := context.Background()

	t.Run("Initializes vault and custody account", func(t *testing.T) {
		f := newFixture(t)
		before := f.payer.PublicKey()
		startBalance, err := f.bank.Store().Get(ctx, before)
		require.NoError(t, err)

		result, err := CreateVault(ctx, f.bank, f.request("alpha"))
		require.NoError(t, err)

		vaultAccount, err := f.bank.Store().Get(ctx, result.Vault.Address)
		require.NoError(t, err)
		assert.Equal(t, f.program, vaultAccount.Owner)
		assert.Len(t, vaultAccount.Data, Space)
		assert.Equal(t, f.bank.Rent().MinimumBalance(Space), vaultAccount.Lamports)

		v, err := DecodeVault(vaultAccount.Data)
		require.NoError(t, err)
		assert.Equal(t, result.Vault.Bump, v.Bump)
		assert.Equal(t, "alpha", DecodeName(v.Name))
		assert.Equal(t, result.Vault.Address, v.Pubkey)
		assert.Equal(t, f.manager.PublicKey(), v.Manager)
		assert.Equal(t, result.TokenAccount.Address, v.TokenAccount)
		assert.Equal(t, int64(100), v.Fee)
		assert.Equal(t, testNow.Unix(), v.Ts)
		assert.Equal(t, uint64(0), v.TotalShares.Lo)
		assert.Equal(t, uint64(0), v.TotalShares.Hi)
		assert.Equal(t, uint64(0), v.TotalDeposits)
		assert.Equal(t, uint64(0), v.TotalWithdraws)
		assert.Equal(t, uint64(0), v.MinDepositAmount)

		custody, err := f.bank.Store().Get(ctx, result.TokenAccount.Address)
		require.NoError(t, err)
		assert.Equal(t, solana.TokenProgramID, custody.Owner)
		tokenAccount, err := runtime.DecodeTokenAccount(custody.Data)
		require.NoError(t, err)
		assert.Equal(t, f.mint, tokenAccount.Mint)
		assert.Equal(t, result.Vault.Address, tokenAccount.Owner)

		payer, err := f.bank.Store().Get(ctx, before)
		require.NoError(t, err)
		spent := f.bank.Rent().MinimumBalance(Space) + f.bank.Rent().MinimumBalance(runtime.TokenAccountSize)
		assert.Equal(t, startBalance.Lamports-spent, payer.Lamports)
	})

	t.Run("Manager may pay", func(t *testing.T) {
		f := newFixture(t)
		req := f.request("self-funded")
		req.Manager = f.payer
		result, err := CreateVault(ctx, f.bank, req)
		require.NoError(t, err)

		v, err := f.reader.GetVault(ctx, result.Vault.Address)
		require.NoError(t, err)
		assert.Equal(t, f.payer.PublicKey(), v.Manager)
	})

	t.Run("Duplicate name", func(t *testing.T) {
		f := newFixture(t)
		_, err := CreateVault(ctx, f.bank, f.request("alpha"))
		require.NoError(t, err)

		_, err = CreateVault(ctx, f.bank, f.request("alpha"))
		assert.True(t, errors.Is(err, ErrAccountAlreadyExists))
	})

	t.Run("Vault address funded by a third party", func(t *testing.T) {
		f := newFixture(t)
		vaultPDA, err := FindVaultAddress(f.program, mustName(t, "prefunded"))
		require.NoError(t, err)
		f.fundFromStranger(t, vaultPDA.Address, 1)
		start := f.balance(t, f.payer.PublicKey())

		result, err := CreateVault(ctx, f.bank, f.request("prefunded"))
		require.NoError(t, err)

		vaultRent := f.bank.Rent().MinimumBalance(Space)
		tokenRent := f.bank.Rent().MinimumBalance(runtime.TokenAccountSize)
		vaultAccount, err := f.bank.Store().Get(ctx, result.Vault.Address)
		require.NoError(t, err)
		assert.Equal(t, f.program, vaultAccount.Owner)
		assert.Equal(t, vaultRent, vaultAccount.Lamports)
		v, err := DecodeVault(vaultAccount.Data)
		require.NoError(t, err)
		assert.Equal(t, "prefunded", DecodeName(v.Name))
		assert.Equal(t, start-(vaultRent-1)-tokenRent, f.balance(t, f.payer.PublicKey()))
	})

	t.Run("Token account address funded by a third party", func(t *testing.T) {
		f := newFixture(t)
		vaultPDA, err := FindVaultAddress(f.program, mustName(t, "prefunded"))
		require.NoError(t, err)
		tokenPDA, err := FindVaultTokenAccountAddress(f.program, vaultPDA.Address)
		require.NoError(t, err)
		tokenRent := f.bank.Rent().MinimumBalance(runtime.TokenAccountSize)
		f.fundFromStranger(t, tokenPDA.Address, tokenRent+500)
		start := f.balance(t, f.payer.PublicKey())

		result, err := CreateVault(ctx, f.bank, f.request("prefunded"))
		require.NoError(t, err)

		custody, err := f.bank.Store().Get(ctx, result.TokenAccount.Address)
		require.NoError(t, err)
		assert.Equal(t, solana.TokenProgramID, custody.Owner)
		assert.Equal(t, tokenRent+500, custody.Lamports)
		tokenAccount, err := runtime.DecodeTokenAccount(custody.Data)
		require.NoError(t, err)
		assert.Equal(t, result.Vault.Address, tokenAccount.Owner)
		assert.Equal(t, start-f.bank.Rent().MinimumBalance(Space), f.balance(t, f.payer.PublicKey()))
	})

	t.Run("Vault address held by another program", func(t *testing.T) {
		f := newFixture(t)
		vaultPDA, err := FindVaultAddress(f.program, mustName(t, "squatted"))
		require.NoError(t, err)
		err = f.bank.Store().Update(ctx, func(tx ledger.Tx) error {
			return tx.Create(&ledger.Account{Address: vaultPDA.Address, Owner: solana.TokenProgramID, Lamports: 1})
		})
		require.NoError(t, err)

		_, err = CreateVault(ctx, f.bank, f.request("squatted"))
		assert.True(t, errors.Is(err, ErrAccountAlreadyExists))
	})

	t.Run("Concurrent duplicate creates", func(t *testing.T) {
		f := newFixture(t)

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = CreateVault(ctx, f.bank, f.request("contested"))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, ErrAccountAlreadyExists), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)

		vaults, err := f.reader.ListVaults(ctx)
		require.NoError(t, err)
		assert.Len(t, vaults, 1)
	})

	t.Run("Missing manager signature leaves no accounts", func(t *testing.T) {
		f := newFixture(t)
		name := mustName(t, "unsigned")
		plan, err := PlanCreateVault(f.program, f.mint, f.manager.PublicKey(), f.payer.PublicKey(), name, 0, 0)
		require.NoError(t, err)

		metas := plan.Instruction.Accounts()
		metas[3].IsSigner = false
		data, err := plan.Instruction.Data()
		require.NoError(t, err)

		err = f.submit(t, solana.NewInstruction(f.program, metas, data), f.payer)
		assert.True(t, errors.Is(err, ErrMissingSignature))
		assert.True(t, errors.Is(err, ErrUnauthorized))
		code, ok := CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, ErrorCodeUnauthorized, code)
		f.assertNoVault(t, "unsigned")
	})

	t.Run("Invalid signature leaves no accounts", func(t *testing.T) {
		f := newFixture(t)
		plan, err := PlanCreateVault(f.program, f.mint, f.manager.PublicKey(), f.payer.PublicKey(), mustName(t, "forged"), 0, 0)
		require.NoError(t, err)

		tx, err := runtime.NewSignedTransaction([]solana.Instruction{plan.Instruction}, f.bank.LatestBlockhash(), f.payer.PublicKey(), f.payer, f.manager)
		require.NoError(t, err)
		tx.Signatures[1] = solana.Signature{}

		_, err = f.bank.ProcessTransaction(ctx, tx)
		assert.True(t, errors.Is(err, ErrInvalidSignature))
		f.assertNoVault(t, "forged")
	})

	t.Run("Insufficient funds leaves no accounts", func(t *testing.T) {
		f := newFixture(t)
		poor := solana.NewWallet().PrivateKey
		_, err := f.bank.Airdrop(ctx, poor.PublicKey(), f.bank.Rent().MinimumBalance(Space))
		require.NoError(t, err)

		req := f.request("underfunded")
		req.Payer = poor
		_, err = CreateVault(ctx, f.bank, req)
		assert.True(t, errors.Is(err, ErrInsufficientFunds))
		f.assertNoVault(t, "underfunded")

		account, err := f.bank.Store().Get(ctx, poor.PublicKey())
		require.NoError(t, err)
		assert.Equal(t, f.bank.Rent().MinimumBalance(Space), account.Lamports)
	})

	t.Run("Unknown mint", func(t *testing.T) {
		f := newFixture(t)
		req := f.request("no-mint")
		req.Mint = solana.NewWallet().PublicKey()
		_, err := CreateVault(ctx, f.bank, req)
		assert.True(t, errors.Is(err, ErrInvalidTokenDescriptor))
		f.assertNoVault(t, "no-mint")
	})

	t.Run("Mint that is not a mint", func(t *testing.T) {
		f := newFixture(t)
		req := f.request("payer-mint")
		req.Mint = f.payer.PublicKey()
		_, err := CreateVault(ctx, f.bank, req)
		assert.True(t, errors.Is(err, ErrInvalidTokenDescriptor))
	})

	t.Run("Vault address must match the name", func(t *testing.T) {
		f := newFixture(t)
		plan, err := PlanCreateVault(f.program, f.mint, f.manager.PublicKey(), f.payer.PublicKey(), mustName(t, "alpha"), 0, 0)
		require.NoError(t, err)
		other, err := FindVaultAddress(f.program, mustName(t, "beta"))
		require.NoError(t, err)

		metas := plan.Instruction.Accounts()
		metas[0].PublicKey = other.Address
		data, err := plan.Instruction.Data()
		require.NoError(t, err)

		err = f.submit(t, solana.NewInstruction(f.program, metas, data), f.payer, f.manager)
		assert.True(t, errors.Is(err, ErrInvalidAccount))
		f.assertNoVault(t, "alpha")
		f.assertNoVault(t, "beta")
	})

	t.Run("Wrong system program", func(t *testing.T) {
		f := newFixture(t)
		plan, err := PlanCreateVault(f.program, f.mint, f.manager.PublicKey(), f.payer.PublicKey(), mustName(t, "alpha"), 0, 0)
		require.NoError(t, err)

		metas := plan.Instruction.Accounts()
		metas[5].PublicKey = solana.NewWallet().PublicKey()
		data, err := plan.Instruction.Data()
		require.NoError(t, err)

		err = f.submit(t, solana.NewInstruction(f.program, metas, data), f.payer, f.manager)
		assert.True(t, errors.Is(err, ErrInvalidProgram))
	})

	t.Run("All-zero name", func(t *testing.T) {
		f := newFixture(t)
		var zero [NameLength]byte
		vaultPDA, err := FindVaultAddress(f.program, zero)
		require.NoError(t, err)
		tokenPDA, err := FindVaultTokenAccountAddress(f.program, vaultPDA.Address)
		require.NoError(t, err)

		ix, err := NewCreateVaultInstruction(f.program, CreateVaultAccounts{
			Vault:        vaultPDA.Address,
			TokenAccount: tokenPDA.Address,
			TokenMint:    f.mint,
			Manager:      f.manager.PublicKey(),
			Payer:        f.payer.PublicKey(),
		}, CreateVaultArgs{Name: zero})
		require.NoError(t, err)

		err = f.submit(t, ix, f.payer, f.manager)
		assert.True(t, errors.Is(err, ErrInvalidName))
	})
}

func TestSumTVL(t *testing.T) {
	assert.Equal(t, uint64(0), SumTVL(nil))
	assert.Equal(t, uint64(70), SumTVL([]*Vault{
		{TotalDeposits: 100, TotalWithdraws: 40},
		{TotalDeposits: 10},
		{TotalDeposits: 5, TotalWithdraws: 9},
	}))

	t.Run("Saturates instead of wrapping", func(t *testing.T) {
		huge := &Vault{TotalDeposits: math.MaxUint64 - 1}
		assert.Equal(t, uint64(math.MaxUint64), SumTVL([]*Vault{huge, huge, {TotalDeposits: 3}}))
	})
}

func TestReader(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, name := range []string{"alpha", "beta"} {
		_, err := CreateVault(ctx, f.bank, f.request(name))
		require.NoError(t, err)
	}

	vaults, err := f.reader.ListVaults(ctx)
	require.NoError(t, err)
	require.Len(t, vaults, 2)
	names := []string{DecodeName(vaults[0].Name), DecodeName(vaults[1].Name)}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names)

	v, err := f.reader.GetVaultByName(ctx, "beta")
	require.NoError(t, err)
	info := NewVaultInfo(v)
	assert.Equal(t, "beta", info.Name)
	assert.Equal(t, "0", info.TotalShares)
	assert.Equal(t, testNow.UTC(), info.CreatedAt)

	total, count, err := f.reader.TotalValueLocked(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), total)
	assert.Equal(t, 2, count)

	_, err = f.reader.GetVault(ctx, f.mint)
	assert.True(t, errors.Is(err, ErrNotVault))
}
