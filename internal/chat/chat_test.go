package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository/badgerstore"
)

// fakePusher records every payload pushed to a connection and can be
// told to treat connections as gone or broken.
type fakePusher struct {
	mu     sync.Mutex
	pushes map[string][][]byte
	gone   map[string]bool
	broken map[string]error
}

func newFakePusher() *fakePusher {
	return &fakePusher{
		pushes: make(map[string][][]byte),
		gone:   make(map[string]bool),
		broken: make(map[string]error),
	}
}

func (p *fakePusher) Push(_ context.Context, connectionID string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gone[connectionID] {
		return ErrConnectionGone
	}
	if err := p.broken[connectionID]; err != nil {
		return err
	}
	p.pushes[connectionID] = append(p.pushes[connectionID], payload)
	return nil
}

func (p *fakePusher) markGone(connectionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gone[connectionID] = true
}

func (p *fakePusher) markBroken(connectionID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broken[connectionID] = err
}

// events decodes everything pushed to one connection.
func (p *fakePusher) events(t *testing.T, connectionID string) []Event {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	events := make([]Event, 0, len(p.pushes[connectionID]))
	for _, payload := range p.pushes[connectionID] {
		var event Event
		require.NoError(t, json.Unmarshal(payload, &event))
		events = append(events, event)
	}
	return events
}

// env wires the full chat core against embedded stores and a fake
// transport.
type env struct {
	chats      *badgerstore.ChatStore
	messages   *badgerstore.MessageStore
	statuses   *badgerstore.StatusStore
	users      *badgerstore.UserStore
	registry   *badgerstore.ConnectionStore
	presence   *badgerstore.PresenceStore
	pusher     *fakePusher
	resolver   *Resolver
	store      *Store
	dispatcher *Dispatcher
	service    *Service
	groups     *GroupEngine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zap.NewNop()

	db, err := badgerstore.Open(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &env{
		chats:    badgerstore.NewChatStore(db, logger),
		messages: badgerstore.NewMessageStore(db, logger),
		statuses: badgerstore.NewStatusStore(db, logger),
		users:    badgerstore.NewUserStore(db, logger),
		registry: badgerstore.NewConnectionStore(db, logger),
		presence: badgerstore.NewPresenceStore(db, logger),
		pusher:   newFakePusher(),
	}
	e.resolver = NewResolver(e.chats, logger)
	e.store = NewStore(e.messages, e.chats, e.statuses, logger)
	e.dispatcher = NewDispatcher(e.registry, e.users, e.pusher, logger)
	e.service = NewService(e.resolver, e.store, e.dispatcher, e.chats, e.users, e.presence, logger)
	e.groups = NewGroupEngine(e.chats, e.users, e.store, e.dispatcher, logger)
	return e
}

func (e *env) addUser(t *testing.T, id, name string) {
	t.Helper()
	_, err := e.users.Create(context.Background(), models.User{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: name,
	})
	require.NoError(t, err)
}

// connect registers one live connection for a user.
func (e *env) connect(t *testing.T, userID, connectionID string) {
	t.Helper()
	now := time.Now()
	err := e.registry.Register(context.Background(), models.Connection{
		ConnectionID: connectionID,
		UserID:       userID,
		ConnectedAt:  now,
		ExpiresAt:    now.Add(time.Hour),
	})
	require.NoError(t, err)
}
