package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	dbconfig "vaultcontrol/pkg/config"
)

// CreateKey generates a key pair and stores it encrypted in the keystore
func CreateKey(c *gin.Context) {
	account, err := dbconfig.Keys.GenerateKeyPair()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	address, err := dbconfig.Keys.SaveKeyStoreEntry(account, dbconfig.App.KeystorePassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, KeyResponse{Address: address})
}

// ListKeys returns the addresses held in the keystore
func ListKeys(c *gin.Context) {
	addresses, err := dbconfig.Keys.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	keys := make([]KeyResponse, 0, len(addresses))
	for _, address := range addresses {
		keys = append(keys, KeyResponse{Address: address})
	}
	c.JSON(http.StatusOK, keys)
}
