package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/chat"
)

func TestHub_PushUnknownConnectionIsGone(t *testing.T) {
	req := require.New(t)
	hub := NewHub(zap.NewNop())

	err := hub.Push(context.Background(), "nope", []byte("{}"))
	req.ErrorIs(err, chat.ErrConnectionGone)
}

func TestHub_PushQueuesOnClientBuffer(t *testing.T) {
	req := require.New(t)
	hub := NewHub(zap.NewNop())

	client := newClient("c1", "alice", nil, zap.NewNop())
	hub.add(client)

	req.NoError(hub.Push(context.Background(), "c1", []byte(`{"type":"message"}`)))
	req.Len(client.send, 1)

	hub.remove(client)
	err := hub.Push(context.Background(), "c1", []byte("{}"))
	req.ErrorIs(err, chat.ErrConnectionGone)
}

func TestHub_RemoveOnlyEvictsSameClient(t *testing.T) {
	req := require.New(t)
	hub := NewHub(zap.NewNop())

	old := newClient("c1", "alice", nil, zap.NewNop())
	replacement := newClient("c1", "alice", nil, zap.NewNop())
	hub.add(old)
	hub.add(replacement)

	// The old client's teardown must not evict the reconnect.
	hub.remove(old)
	req.NoError(hub.Push(context.Background(), "c1", []byte("{}")))
	req.Len(replacement.send, 1)
}
