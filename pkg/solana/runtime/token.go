package runtime

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	"vaultcontrol/pkg/ledger"
)

// SPL token account sizes.
const (
	MintSize         = 82
	TokenAccountSize = 165
)

// Token instruction tags, the first byte of instruction data.
const (
	tokenInitializeMint    byte = 0
	tokenInitializeAccount byte = 1
)

// TokenProgram implements the subset of the SPL token program needed to
// establish custody: mint and token account initialization.
type TokenProgram struct{}

func (TokenProgram) ID() solana.PublicKey { return solana.TokenProgramID }

// NewInitializeMintInstruction builds an SPL InitializeMint instruction
// without a freeze authority.
func NewInitializeMintInstruction(mint, mintAuthority solana.PublicKey, decimals uint8) solana.Instruction {
	data := make([]byte, 0, 2+solana.PublicKeyLength+1)
	data = append(data, tokenInitializeMint, decimals)
	data = append(data, mintAuthority[:]...)
	data = append(data, 0) // no freeze authority

	return solana.NewInstruction(
		solana.TokenProgramID,
		solana.AccountMetaSlice{
			solana.Meta(mint).WRITE(),
			solana.Meta(solana.SysVarRentPubkey),
		},
		data,
	)
}

// NewInitializeAccountInstruction builds an SPL InitializeAccount instruction
// that types account to mint and hands its authority to owner.
func NewInitializeAccountInstruction(account, mint, owner solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.TokenProgramID,
		solana.AccountMetaSlice{
			solana.Meta(account).WRITE(),
			solana.Meta(mint),
			solana.Meta(owner),
			solana.Meta(solana.SysVarRentPubkey),
		},
		[]byte{tokenInitializeAccount},
	)
}

func (p TokenProgram) Process(ic *InvokeContext, accounts []*solana.AccountMeta, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty token instruction", ErrInvalidInstructionData)
	}

	switch data[0] {
	case tokenInitializeMint:
		if len(accounts) < 1 {
			return ErrNotEnoughAccountKeys
		}
		if len(data) < 2+solana.PublicKeyLength+1 {
			return fmt.Errorf("%w: short InitializeMint", ErrInvalidInstructionData)
		}
		authority := solana.PublicKeyFromBytes(data[2 : 2+solana.PublicKeyLength])
		return p.initializeMint(ic, accounts[0].PublicKey, authority, data[1])
	case tokenInitializeAccount:
		if len(accounts) < 3 {
			return ErrNotEnoughAccountKeys
		}
		return p.initializeAccount(ic, accounts[0].PublicKey, accounts[1].PublicKey, accounts[2].PublicKey)
	default:
		return fmt.Errorf("%w: unsupported token instruction %d", ErrInvalidInstructionData, data[0])
	}
}

func (p TokenProgram) initializeMint(ic *InvokeContext, address, authority solana.PublicKey, decimals uint8) error {
	account, err := ic.GetAccount(address)
	if err != nil {
		return err
	}
	if !account.Owner.Equals(solana.TokenProgramID) || len(account.Data) != MintSize {
		return fmt.Errorf("%w: %s is not a mint-sized token account", ErrInvalidAccountData, address)
	}

	current, err := DecodeMint(account.Data)
	if err != nil {
		return err
	}
	if current.IsInitialized {
		return fmt.Errorf("%w: mint %s", ErrAlreadyInitialized, address)
	}

	mintAuthority := authority
	encoded, err := encodeFixed(&token.Mint{
		MintAuthority: &mintAuthority,
		Decimals:      decimals,
		IsInitialized: true,
	}, MintSize)
	if err != nil {
		return err
	}
	account.Data = encoded
	return ic.PutAccount(account)
}

func (p TokenProgram) initializeAccount(ic *InvokeContext, address, mintAddress, owner solana.PublicKey) error {
	if _, err := LoadMint(ic, mintAddress); err != nil {
		return err
	}

	account, err := ic.GetAccount(address)
	if err != nil {
		return err
	}
	if !account.Owner.Equals(solana.TokenProgramID) || len(account.Data) != TokenAccountSize {
		return fmt.Errorf("%w: %s is not a token-account-sized token account", ErrInvalidAccountData, address)
	}

	current, err := DecodeTokenAccount(account.Data)
	if err != nil {
		return err
	}
	if current.State != token.Uninitialized {
		return fmt.Errorf("%w: token account %s", ErrAlreadyInitialized, address)
	}

	encoded, err := encodeFixed(&token.Account{
		Mint:  mintAddress,
		Owner: owner,
		State: token.Initialized,
	}, TokenAccountSize)
	if err != nil {
		return err
	}
	account.Data = encoded
	return ic.PutAccount(account)
}

// LoadMint resolves address to an initialized mint owned by the token program.
func LoadMint(ic *InvokeContext, address solana.PublicKey) (*token.Mint, error) {
	account, err := ic.GetAccount(address)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrInvalidMint, address)
		}
		return nil, err
	}
	return MintFromAccount(account)
}

// MintFromAccount checks ownership and layout of a mint account and decodes it.
func MintFromAccount(account *ledger.Account) (*token.Mint, error) {
	if !account.Owner.Equals(solana.TokenProgramID) {
		return nil, fmt.Errorf("%w: %s is not owned by the token program", ErrInvalidMint, account.Address)
	}
	if len(account.Data) != MintSize {
		return nil, fmt.Errorf("%w: %s has %d bytes of data", ErrInvalidMint, account.Address, len(account.Data))
	}
	mint, err := DecodeMint(account.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	if !mint.IsInitialized {
		return nil, fmt.Errorf("%w: %s is not initialized", ErrInvalidMint, account.Address)
	}
	return mint, nil
}

func DecodeMint(data []byte) (*token.Mint, error) {
	var mint token.Mint
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: mint: %v", ErrInvalidAccountData, err)
	}
	return &mint, nil
}

func DecodeTokenAccount(data []byte) (*token.Account, error) {
	var account token.Account
	if err := account.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: token account: %v", ErrInvalidAccountData, err)
	}
	return &account, nil
}

// encodeFixed encodes v with the bin encoding and pads the result to size.
func encodeFixed(v bin.BinaryMarshaler, size int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := v.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, fmt.Errorf("failed to encode account: %w", err)
	}
	if buf.Len() > size {
		return nil, fmt.Errorf("%w: encoded %d bytes into a %d byte account", ErrInvalidAccountData, buf.Len(), size)
	}
	out := make([]byte, size)
	copy(out, buf.Bytes())
	return out, nil
}
