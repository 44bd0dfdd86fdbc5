package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tumalove/tumalove-backend/internal/ws"
)

// WSHandler upgrades status-watch connections. Supporters are anonymous,
// so the endpoint is unauthenticated: a connection only ever sees events
// for the single checkout request id it names, which the client learned
// from its own STK push response.
type WSHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle serves GET /api/ws?checkout_id=...
func (h *WSHandler) Handle(c *gin.Context) {
	checkoutID := c.Query("checkout_id")
	if checkoutID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "checkout_id is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	client := ws.NewClient(conn, h.hub, checkoutID)
	h.hub.Register(client)

	client.Run(c.Request.Context())
}
