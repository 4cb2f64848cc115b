package vault

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"vaultcontrol/pkg/solana/runtime"
)

// CreateVaultDiscriminator prefixes create_vault instruction data.
var CreateVaultDiscriminator = instructionDiscriminator("create_vault")

func instructionDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// CreateVaultArgs are the borsh encoded arguments of create_vault.
type CreateVaultArgs struct {
	Name        [NameLength]byte
	ProfitShare uint32
	Fee         uint32
}

// CreateVaultAccounts lists the accounts create_vault operates on. The
// system and token program entries are appended by the builder.
type CreateVaultAccounts struct {
	Vault        solana.PublicKey
	TokenAccount solana.PublicKey
	TokenMint    solana.PublicKey
	Manager      solana.PublicKey
	Payer        solana.PublicKey
}

// createVaultAccountCount is the number of accounts create_vault requires.
const createVaultAccountCount = 7

func (a CreateVaultAccounts) metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(a.Vault).WRITE(),
		solana.Meta(a.TokenAccount).WRITE(),
		solana.Meta(a.TokenMint).WRITE(),
		solana.Meta(a.Manager).SIGNER(),
		solana.Meta(a.Payer).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
	}
}

// EncodeCreateVaultData returns discriminator ‖ borsh(args).
func EncodeCreateVaultData(args CreateVaultArgs) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(CreateVaultDiscriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, fmt.Errorf("failed to encode create_vault args: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCreateVaultData parses create_vault instruction data.
func DecodeCreateVaultData(data []byte) (*CreateVaultArgs, error) {
	if len(data) < len(CreateVaultDiscriminator) || !bytes.Equal(data[:8], CreateVaultDiscriminator[:]) {
		return nil, fmt.Errorf("%w: not a create_vault instruction", runtime.ErrInvalidInstructionData)
	}
	var args CreateVaultArgs
	if err := bin.NewBorshDecoder(data[8:]).Decode(&args); err != nil {
		return nil, fmt.Errorf("%w: create_vault args: %v", runtime.ErrInvalidInstructionData, err)
	}
	return &args, nil
}

// NewCreateVaultInstruction builds a create_vault instruction for programID.
func NewCreateVaultInstruction(programID solana.PublicKey, accounts CreateVaultAccounts, args CreateVaultArgs) (*solana.GenericInstruction, error) {
	data, err := EncodeCreateVaultData(args)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, accounts.metas(), data), nil
}

// CreateVaultPlan is a create_vault instruction together with the
// addresses it will initialize.
type CreateVaultPlan struct {
	Instruction  *solana.GenericInstruction
	Vault        PDAResult
	TokenAccount PDAResult
}

// PlanCreateVault derives both PDAs for name and builds the instruction.
func PlanCreateVault(programID, mint, manager, payer solana.PublicKey, name [NameLength]byte, profitShare, fee uint32) (*CreateVaultPlan, error) {
	vaultPDA, err := FindVaultAddress(programID, name)
	if err != nil {
		return nil, err
	}
	tokenPDA, err := FindVaultTokenAccountAddress(programID, vaultPDA.Address)
	if err != nil {
		return nil, err
	}

	ix, err := NewCreateVaultInstruction(programID, CreateVaultAccounts{
		Vault:        vaultPDA.Address,
		TokenAccount: tokenPDA.Address,
		TokenMint:    mint,
		Manager:      manager,
		Payer:        payer,
	}, CreateVaultArgs{
		Name:        name,
		ProfitShare: profitShare,
		Fee:         fee,
	})
	if err != nil {
		return nil, err
	}

	return &CreateVaultPlan{
		Instruction:  ix,
		Vault:        vaultPDA,
		TokenAccount: tokenPDA,
	}, nil
}
