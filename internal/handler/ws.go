package handler

import (
	"log"
	"net/http"

	"github.com/parjanul123/MoneyManager/internal/middleware"
	"github.com/parjanul123/MoneyManager/internal/realtime"
	"github.com/parjanul123/MoneyManager/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	Channel  *realtime.Channel
	upgrader websocket.Upgrader
}

func NewWSHandler(channel *realtime.Channel) *WSHandler {
	return &WSHandler{
		Channel: channel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// auth happens via the token middleware, the browser origin
			// carries no extra signal for a token-authenticated socket
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Connect upgrades to WebSocket and hands the connection to the push
// channel. The client authenticates with ?token= since browsers cannot
// set headers on WebSocket dials.
func (h *WSHandler) Connect(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade for user %d: %v", user.ID, err)
		return
	}
	h.Channel.Serve(c.Request.Context(), ws, user.ID)
}
