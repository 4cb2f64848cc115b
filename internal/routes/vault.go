package routes

import (
	"github.com/gin-gonic/gin"

	"vaultcontrol/internal/handlers"
)

// SetupVaultRoutes sets up all routes related to vaults
func SetupVaultRoutes(r *gin.Engine, limiter gin.HandlerFunc) {
	vaults := r.Group("/vaults")
	{
		vaults.GET("", handlers.ListVaults)
		vaults.POST("", limiter, handlers.CreateVault)
		vaults.GET("/derive", handlers.DeriveVault)
		vaults.GET("/tvl", handlers.GetTVL)
		vaults.GET("/ws", handlers.StreamVaultUpdates)
		vaults.GET("/index", handlers.ListVaultIndex)
		vaults.GET("/:address", handlers.GetVault)
		vaults.GET("/:address/stats", handlers.ListVaultStats)
	}
}
