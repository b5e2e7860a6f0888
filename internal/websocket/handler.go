package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs streams one session to the peer until it disconnects.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string) {
	client := NewClient(hub, c, sessionID)
	hub.Register(client)

	go client.writePump()
	client.readPump()
}
