package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"linguachat/client/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The bridge listens on a local address only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request and pushes the full view after every
// session update. Inbound frames are ignored.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	updates, release, ok := h.Feed.Subscribe()
	if !ok {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "bridge is shutting down"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		release()
		h.log.Warn("Failed to upgrade push socket", "error", err)
		return
	}

	closed := make(chan struct{})
	go h.readPump(conn, closed)
	h.writePump(conn, updates, closed)
	release()
}

// readPump drains control frames until the browser goes away.
func (h *Handler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(config.MaxFrameSize)
	conn.SetReadDeadline(time.Now().Add(config.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Push socket read failed", "error", err)
			}
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, updates <-chan struct{}, closed <-chan struct{}) {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if !h.push(conn) {
		return
	}

	for {
		select {
		case _, ok := <-updates:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "bridge stopped"))
				return
			}
			if !h.push(conn) {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return
		}
	}
}

func (h *Handler) push(conn *websocket.Conn) bool {
	ctx, cancel := context.WithTimeout(context.Background(), config.WriteWait)
	defer cancel()

	resp, err := h.snapshot(ctx)
	if err != nil {
		h.log.Warn("Failed to build view for push socket", "error", err)
		return false
	}

	conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
	if err := conn.WriteJSON(resp); err != nil {
		h.log.Debug("Push socket write failed", "error", err)
		return false
	}
	return true
}
