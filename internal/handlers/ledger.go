package handlers

import (
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	dbconfig "vaultcontrol/pkg/config"
	"vaultcontrol/pkg/ledger"
)

func newAccountResponse(account *ledger.Account) AccountResponse {
	return AccountResponse{
		Address:    account.Address.String(),
		Owner:      account.Owner.String(),
		Lamports:   account.Lamports,
		Balance:    ToSOL(account.Lamports),
		DataLength: len(account.Data),
		Executable: account.Executable,
	}
}

// Airdrop credits SOL to an address on the local ledger
func Airdrop(c *gin.Context) {
	var request AirdropRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	address, err := solana.PublicKeyFromBase58(request.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}
	lamports := FromSOL(request.Amount)
	if !request.Amount.IsPositive() || lamports == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be at least one lamport"})
		return
	}

	account, err := dbconfig.Bank.Airdrop(c.Request.Context(), address, lamports)
	if err != nil {
		respondError(c, err)
		return
	}

	log.WithFields(log.Fields{
		"address":  request.Address,
		"lamports": lamports,
	}).Info("Airdrop completed")
	c.JSON(http.StatusOK, newAccountResponse(account))
}

// CreateMint creates and initializes a new token mint paid by a keystore key
func CreateMint(c *gin.Context) {
	var request CreateMintRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payer, err := dbconfig.Keys.LoadSigner(request.Payer, dbconfig.App.KeystorePassword)
	if err != nil {
		respondError(c, err)
		return
	}

	authority := payer.PublicKey()
	if request.Authority != "" {
		authority, err = solana.PublicKeyFromBase58(request.Authority)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid authority address"})
			return
		}
	}

	mint := solana.NewWallet().PrivateKey
	signature, err := dbconfig.Bank.CreateMint(c.Request.Context(), payer, mint, authority, request.Decimals)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateMintResponse{
		Signature: signature.String(),
		Mint:      mint.PublicKey().String(),
		Authority: authority.String(),
		Decimals:  request.Decimals,
	})
}

// GetAccount returns a raw ledger account
func GetAccount(c *gin.Context) {
	address, err := solana.PublicKeyFromBase58(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}

	account, err := dbconfig.Ledger.Get(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(account))
}

// GetTransaction returns the journal entry of a committed transaction
func GetTransaction(c *gin.Context) {
	signature, err := solana.SignatureFromBase58(c.Param("signature"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	record, err := dbconfig.Ledger.GetRecord(c.Request.Context(), signature)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"signature": record.Signature.String(),
		"slot":      record.Slot,
		"payer":     record.Payer.String(),
	})
}
