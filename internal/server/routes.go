// Package server wires the HTTP surface: the websocket upgrade endpoint,
// the polling fallback routes, and health.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AnujaKalahara99/camconnectit/internal/polling"
	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Signaling payloads carry no credentials; cross-origin clients are
	// expected, so all origins are accepted.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter builds the gin router serving both signaling transports.
func NewRouter(hub *signaling.Hub, store polling.MessageLog) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ws", serveWs(hub))

	polling.NewHandler(store).Mount(router)

	return router
}

// serveWs upgrades the HTTP connection and hands the resulting client to
// the hub.
func serveWs(hub *signaling.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err, "remote", c.Request.RemoteAddr)
			return
		}

		client := signaling.NewClient(hub, conn, uuid.NewString())
		hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
