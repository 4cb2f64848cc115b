package runtime

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// NewSignedTransaction builds a transaction paid by payer and signs it with
// every key in signers. Keys not required by the message are ignored.
func NewSignedTransaction(ixs []solana.Instruction, blockhash solana.Hash, payer solana.PublicKey, signers ...solana.PrivateKey) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	keys := make(map[solana.PublicKey]solana.PrivateKey, len(signers))
	for _, signer := range signers {
		keys[signer.PublicKey()] = signer
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if signer, ok := keys[key]; ok {
			return &signer
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingSignature, err)
	}
	return tx, nil
}

// Submit signs ixs against the latest blockhash and processes them.
func (b *Bank) Submit(ctx context.Context, ixs []solana.Instruction, payer solana.PublicKey, signers ...solana.PrivateKey) (solana.Signature, error) {
	tx, err := NewSignedTransaction(ixs, b.LatestBlockhash(), payer, signers...)
	if err != nil {
		return solana.Signature{}, err
	}
	return b.ProcessTransaction(ctx, tx)
}

// CreateMint allocates and initializes a new SPL mint at mint, paid by payer.
func (b *Bank) CreateMint(ctx context.Context, payer, mint solana.PrivateKey, authority solana.PublicKey, decimals uint8) (solana.Signature, error) {
	ixs := []solana.Instruction{
		NewCreateAccountInstruction(payer.PublicKey(), mint.PublicKey(), solana.TokenProgramID, b.rent.MinimumBalance(MintSize), MintSize),
		NewInitializeMintInstruction(mint.PublicKey(), authority, decimals),
	}
	return b.Submit(ctx, ixs, payer.PublicKey(), payer, mint)
}
