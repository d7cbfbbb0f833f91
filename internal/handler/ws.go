package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// dashboard is served from another origin in development
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades the connection and hands it to the hub. The hub's
// pumps own the connection from here on.
func (h *Handler) ServeWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	h.hub.RegisterWebSession(conn)
	return nil
}
