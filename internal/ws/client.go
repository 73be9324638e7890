package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 25 * time.Second
	maxFrameBytes  = 64 << 10
	sendBufferSize = 64
)

// Client is one live WebSocket connection: a read pump that turns
// inbound frames into handler calls and a write pump that serializes
// all outbound traffic onto the socket.
type Client struct {
	connectionID string
	userID       string

	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}

	logger *zap.Logger
}

func newClient(connectionID, userID string, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		connectionID: connectionID,
		userID:       userID,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		done:         make(chan struct{}),
		logger:       logger,
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump owns the socket's read side. It returns when the peer goes
// away or misbehaves; the caller runs disconnect cleanup after.
func (c *Client) readPump(onFrame func([]byte), onPong func()) {
	defer c.close()

	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		onPong()
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error",
					zap.String("connection_id", c.connectionID),
					zap.Error(err),
				)
			}
			return
		}
		onFrame(payload)
	}
}

// writePump owns the socket's write side: queued payloads plus
// keepalive pings. Only this goroutine writes to the socket.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
