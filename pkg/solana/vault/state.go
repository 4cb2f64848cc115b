package vault

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Space is the exact size of a vault account: the 8 byte discriminator
// followed by the packed fields of Vault.
const Space = 8 + 1 + NameLength + 32 + 32 + 32 + 16 + 8 + 8 + 8 + 8 + 8

// Discriminator prefixes every vault account.
var Discriminator = accountDiscriminator("Vault")

func accountDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// Vault is the record stored at the vault PDA.
type Vault struct {
	Bump             uint8
	Name             [NameLength]byte
	Pubkey           solana.PublicKey
	Manager          solana.PublicKey
	TokenAccount     solana.PublicKey
	TotalShares      bin.Uint128
	Fee              int64
	Ts               int64
	TotalDeposits    uint64
	TotalWithdraws   uint64
	MinDepositAmount uint64
}

func (v *Vault) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(Discriminator[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint8(v.Bump); err != nil {
		return err
	}
	for _, b := range [][]byte{v.Name[:], v.Pubkey[:], v.Manager[:], v.TokenAccount[:]} {
		if err := enc.WriteBytes(b, false); err != nil {
			return err
		}
	}
	if err := enc.WriteUint128(v.TotalShares, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteInt64(v.Fee, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteInt64(v.Ts, binary.LittleEndian); err != nil {
		return err
	}
	for _, n := range []uint64{v.TotalDeposits, v.TotalWithdraws, v.MinDepositAmount} {
		if err := enc.WriteUint64(n, binary.LittleEndian); err != nil {
			return err
		}
	}
	return nil
}

func (v *Vault) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	disc, err := dec.ReadNBytes(8)
	if err != nil {
		return err
	}
	if !bytes.Equal(disc, Discriminator[:]) {
		return fmt.Errorf("%w: discriminator %x", ErrNotVault, disc)
	}
	if v.Bump, err = dec.ReadUint8(); err != nil {
		return err
	}
	for _, dst := range [][]byte{v.Name[:], v.Pubkey[:], v.Manager[:], v.TokenAccount[:]} {
		b, err := dec.ReadNBytes(len(dst))
		if err != nil {
			return err
		}
		copy(dst, b)
	}
	if v.TotalShares, err = dec.ReadUint128(binary.LittleEndian); err != nil {
		return err
	}
	if v.Fee, err = dec.ReadInt64(binary.LittleEndian); err != nil {
		return err
	}
	if v.Ts, err = dec.ReadInt64(binary.LittleEndian); err != nil {
		return err
	}
	for _, dst := range []*uint64{&v.TotalDeposits, &v.TotalWithdraws, &v.MinDepositAmount} {
		if *dst, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return err
		}
	}
	return nil
}

// Encode serializes the vault into exactly Space bytes.
func (v *Vault) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := v.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, fmt.Errorf("failed to encode vault: %w", err)
	}
	if buf.Len() != Space {
		return nil, fmt.Errorf("vault encoded to %d bytes, want %d", buf.Len(), Space)
	}
	return buf.Bytes(), nil
}

// DecodeVault parses account data written by Encode.
func DecodeVault(data []byte) (*Vault, error) {
	if len(data) != Space {
		return nil, fmt.Errorf("%w: %d bytes of data", ErrNotVault, len(data))
	}
	var v Vault
	if err := v.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("failed to decode vault: %w", err)
	}
	return &v, nil
}

// TVL is the value held by the vault: deposits less withdrawals.
func (v *Vault) TVL() uint64 {
	if v.TotalWithdraws > v.TotalDeposits {
		return 0
	}
	return v.TotalDeposits - v.TotalWithdraws
}

// SumTVL adds the TVL of every vault, saturating at the uint64 maximum.
func SumTVL(vaults []*Vault) uint64 {
	var total uint64
	for _, v := range vaults {
		tvl := v.TVL()
		if total > math.MaxUint64-tvl {
			return math.MaxUint64
		}
		total += tvl
	}
	return total
}

// TotalSharesString renders the 128-bit share count in base 10.
func (v *Vault) TotalSharesString() string {
	n := new(big.Int).SetUint64(v.TotalShares.Hi)
	n.Lsh(n, 64)
	n.Or(n, new(big.Int).SetUint64(v.TotalShares.Lo))
	return n.String()
}
