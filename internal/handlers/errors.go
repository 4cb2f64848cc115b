package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vaultcontrol/pkg/keystore"
	"vaultcontrol/pkg/ledger"
	"vaultcontrol/pkg/solana/runtime"
	"vaultcontrol/pkg/solana/vault"
)

// statusFor maps ledger and program errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, runtime.ErrMissingSignature),
		errors.Is(err, runtime.ErrInvalidSignature),
		errors.Is(err, vault.ErrUnauthorized),
		errors.Is(err, keystore.ErrDecrypt):
		return http.StatusUnauthorized
	case errors.Is(err, runtime.ErrAccountAlreadyExists),
		errors.Is(err, runtime.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, runtime.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, keystore.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, vault.ErrInvalidTokenDescriptor),
		errors.Is(err, vault.ErrInvalidName),
		errors.Is(err, vault.ErrInvalidAccount),
		errors.Is(err, vault.ErrInvalidProgram),
		errors.Is(err, vault.ErrNotVault),
		errors.Is(err, runtime.ErrInvalidMint),
		errors.Is(err, runtime.ErrIllegalOwner):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if code, ok := vault.CodeOf(err); ok {
		body["code"] = uint32(code)
	}
	c.JSON(statusFor(err), body)
}
