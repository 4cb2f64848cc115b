package handlers

import (
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"vaultcontrol/internal/models"
	dbconfig "vaultcontrol/pkg/config"
	"vaultcontrol/pkg/events"
	"vaultcontrol/pkg/solana/runtime"
	"vaultcontrol/pkg/solana/vault"
)

// CreateVault signs create_vault with keystore keys and submits it
func CreateVault(c *gin.Context) {
	var request CreateVaultRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mint, err := solana.PublicKeyFromBase58(request.Mint)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mint address"})
		return
	}
	if request.Payer == "" {
		request.Payer = request.Manager
	}

	manager, err := dbconfig.Keys.LoadSigner(request.Manager, dbconfig.App.KeystorePassword)
	if err != nil {
		respondError(c, err)
		return
	}
	payer, err := dbconfig.Keys.LoadSigner(request.Payer, dbconfig.App.KeystorePassword)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := vault.CreateVault(c.Request.Context(), dbconfig.Bank, vault.CreateVaultRequest{
		ProgramID:   dbconfig.App.VaultProgramID,
		Mint:        mint,
		Name:        request.Name,
		ProfitShare: request.ProfitShare,
		Fee:         request.Fee,
		Manager:     manager,
		Payer:       payer,
	})
	if err != nil {
		log.WithFields(log.Fields{
			"name":    request.Name,
			"manager": request.Manager,
			"error":   err.Error(),
		}).Warn("create_vault rejected")
		respondError(c, err)
		return
	}

	created, err := dbconfig.Vaults.GetVault(c.Request.Context(), result.Vault.Address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load created vault"})
		return
	}

	log.WithFields(log.Fields{
		"vault":     result.Vault.Address.String(),
		"signature": result.Signature.String(),
		"name":      request.Name,
	}).Info("Vault created")

	if dbconfig.Events != nil {
		event := events.NewVaultCreated(result.Signature.String(), mint.String(), created)
		if err := dbconfig.Events.Publish(c.Request.Context(), events.QueueVaultCreated, event); err != nil {
			log.WithField("vault", event.Address).Errorf("Failed to publish vault_created: %v", err)
		}
	}

	c.JSON(http.StatusCreated, CreateVaultResponse{
		Signature:    result.Signature.String(),
		Vault:        vault.NewVaultInfo(created),
		VaultBump:    result.Vault.Bump,
		TokenAccount: result.TokenAccount,
	})
}

// ListVaults returns every vault account on the ledger
func ListVaults(c *gin.Context) {
	vaults, err := dbconfig.Vaults.ListVaults(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	infos := make([]vault.VaultInfo, 0, len(vaults))
	for _, v := range vaults {
		infos = append(infos, vault.NewVaultInfo(v))
	}
	c.JSON(http.StatusOK, infos)
}

// GetVault returns one vault by address
func GetVault(c *gin.Context) {
	address, err := solana.PublicKeyFromBase58(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vault address"})
		return
	}

	v, err := dbconfig.Vaults.GetVault(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vault.NewVaultInfo(v))
}

// DeriveVault computes the vault and custody addresses for a name
func DeriveVault(c *gin.Context) {
	name, err := vault.EncodeName(c.Query("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	programID := dbconfig.App.VaultProgramID
	vaultPDA, err := vault.FindVaultAddress(programID, name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	tokenPDA, err := vault.FindVaultTokenAccountAddress(programID, vaultPDA.Address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rent := dbconfig.Bank.Rent()
	lamports := rent.MinimumBalance(vault.Space) + rent.MinimumBalance(runtime.TokenAccountSize)
	c.JSON(http.StatusOK, DeriveVaultResponse{
		Name:         vault.DecodeName(name),
		ProgramID:    programID.String(),
		Vault:        vaultPDA,
		TokenAccount: tokenPDA,
		Space:        vault.Space,
		RentLamports: lamports,
		RentSOL:      ToSOL(lamports),
	})
}

// GetTVL returns the total value locked across all vaults
func GetTVL(c *gin.Context) {
	vaults, err := dbconfig.Vaults.ListVaults(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := TVLResponse{
		Vaults: len(vaults),
		Tvl:    vault.SumTVL(vaults),
	}
	if c.Query("detail") == "true" {
		for _, v := range vaults {
			response.List = append(response.List, vault.NewVaultInfo(v))
		}
	}
	response.TvlSOL = ToSOL(response.Tvl)
	c.JSON(http.StatusOK, response)
}

// ListVaultIndex returns the off-ledger vault index kept by the worker
func ListVaultIndex(c *gin.Context) {
	query := dbconfig.DB.Order("id desc")
	if manager := c.Query("manager"); manager != "" {
		query = query.Where("manager = ?", manager)
	}

	var rows []models.VaultIndex
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ListVaultStats returns the stat snapshots of one vault, newest first
func ListVaultStats(c *gin.Context) {
	var stats []models.VaultStat
	err := dbconfig.DB.
		Where("address = ?", c.Param("address")).
		Order("snapshot_at desc").
		Limit(100).
		Find(&stats).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
