package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/chat"
)

// Hub tracks the live WebSocket clients on this process, keyed by
// connection id. It is the in-memory half of the connection registry:
// the repository knows which connection ids a user owns, the hub knows
// which of those are attached to this process and can push to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.connectionID] = c
	h.mu.Unlock()
}

// remove detaches a client from the hub. It only removes the exact
// client given: a reconnect that reuses the id must not be evicted by
// the old client's teardown.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if current, ok := h.clients[c.connectionID]; ok && current == c {
		delete(h.clients, c.connectionID)
	}
	h.mu.Unlock()
}

// Push hands a payload to one connection's write pump. A connection
// the hub does not know, or one whose send buffer is full because the
// peer stopped reading, counts as gone.
func (h *Hub) Push(_ context.Context, connectionID string, payload []byte) error {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return chat.ErrConnectionGone
	}

	select {
	case client.send <- payload:
		return nil
	default:
		h.logger.Warn("send buffer full, dropping connection",
			zap.String("connection_id", connectionID),
			zap.String("user_id", client.userID),
		)
		client.close()
		return chat.ErrConnectionGone
	}
}
