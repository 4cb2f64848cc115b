package routes

import (
	"github.com/gin-gonic/gin"

	"vaultcontrol/internal/handlers"
)

// SetupLedgerRoutes sets up the local ledger routes
func SetupLedgerRoutes(r *gin.Engine, limiter gin.HandlerFunc) {
	ledger := r.Group("/ledger")
	{
		ledger.POST("/airdrop", limiter, handlers.Airdrop)
		ledger.POST("/mints", limiter, handlers.CreateMint)
		ledger.GET("/accounts/:address", handlers.GetAccount)
		ledger.GET("/transactions/:signature", handlers.GetTransaction)
	}
}

// SetupKeyRoutes sets up the keystore routes
func SetupKeyRoutes(r *gin.Engine, limiter gin.HandlerFunc) {
	keys := r.Group("/keys")
	{
		keys.GET("", handlers.ListKeys)
		keys.POST("", limiter, handlers.CreateKey)
	}
}
