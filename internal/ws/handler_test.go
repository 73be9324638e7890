package ws

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/chat"
	"github.com/Jonathan1021/chat-whatsapp/internal/models"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository/badgerstore"
)

func testRegistry(t *testing.T) *badgerstore.ConnectionStore {
	t.Helper()
	db, err := badgerstore.Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return badgerstore.NewConnectionStore(db, zap.NewNop())
}

// registerHook lets a test observe the exact moment a connection
// becomes visible in the registry.
type registerHook struct {
	repository.ConnectionRepository
	onRegister func(models.Connection)
}

func (r *registerHook) Register(ctx context.Context, conn models.Connection) error {
	r.onRegister(conn)
	return r.ConnectionRepository.Register(ctx, conn)
}

type failingRegistry struct {
	repository.ConnectionRepository
}

func (failingRegistry) Register(context.Context, models.Connection) error {
	return errors.New("registry down")
}

func TestAttach_HubReachableBeforeRegistryVisible(t *testing.T) {
	req := require.New(t)
	hub := NewHub(zap.NewNop())
	client := newClient("c1", "bob", nil, zap.NewNop())

	// A fan-out may race the connect path: the instant Register makes
	// the id visible, a concurrent Deliver can push to it. If the hub
	// did not hold the client yet, that push would come back gone and
	// the dispatcher would prune the live connection. Assert the hub
	// is reachable at registration time.
	var pushErrAtRegister error
	registry := &registerHook{
		ConnectionRepository: testRegistry(t),
		onRegister: func(conn models.Connection) {
			pushErrAtRegister = hub.Push(context.Background(), conn.ConnectionID, []byte(`{"type":"message"}`))
		},
	}
	h := NewHandler(hub, registry, nil, nil, zap.NewNop())

	req.NoError(h.attach(context.Background(), client))
	req.NoError(pushErrAtRegister)
	req.NotErrorIs(pushErrAtRegister, chat.ErrConnectionGone)
	req.Len(client.send, 1)

	conns, err := registry.ConnectionsFor(context.Background(), "bob")
	req.NoError(err)
	req.Equal([]string{"c1"}, conns)
	req.NoError(hub.Push(context.Background(), "c1", []byte("{}")))
}

func TestAttach_UnwindsHubWhenRegistryFails(t *testing.T) {
	req := require.New(t)
	hub := NewHub(zap.NewNop())
	client := newClient("c1", "bob", nil, zap.NewNop())

	h := NewHandler(hub, failingRegistry{}, nil, nil, zap.NewNop())

	err := h.attach(context.Background(), client)
	req.Error(err)

	// The half-attached client must not linger in the hub.
	pushErr := hub.Push(context.Background(), "c1", []byte("{}"))
	req.ErrorIs(pushErr, chat.ErrConnectionGone)
}
