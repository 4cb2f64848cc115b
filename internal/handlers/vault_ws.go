package handlers

import (
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	dbconfig "vaultcontrol/pkg/config"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(dbconfig.App.AllowedOrigins) == 0 {
			return true
		}
		for _, allowed := range dbconfig.App.AllowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	},
}

// StreamVaultUpdates pushes committed account updates over a websocket.
// With ?address= only that account is streamed, otherwise every account
// owned by the vault or token program is.
func StreamVaultUpdates(c *gin.Context) {
	var filter *solana.PublicKey
	if raw := c.Query("address"); raw != "" {
		address, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
			return
		}
		filter = &address
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := dbconfig.Bank.Notifier().Subscribe(64)
	defer cancel()

	// reader: consumes pongs and notices the client going away
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	programID := dbconfig.App.VaultProgramID
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			if filter != nil && !update.Address.Equals(*filter) {
				continue
			}
			if filter == nil && !update.Owner.Equals(programID) && !update.Owner.Equals(solana.TokenProgramID) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(update); err != nil {
				log.WithField("error", err.Error()).Debug("Websocket write failed")
				return
			}
		}
	}
}
