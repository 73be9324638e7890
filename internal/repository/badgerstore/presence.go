package badgerstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

// onlineTTL is how long an online marker survives without a refresh.
// Connect sets it, the websocket ping loop refreshes it, disconnect
// clears it; if the process holding the socket dies, the marker simply
// expires.
const onlineTTL = 90 * time.Second

// PresenceStore keeps a TTL'd marker "online:{userID}" and a durable
// "lastseen:{userID}" timestamp.
type PresenceStore struct {
	db     *badger.DB
	logger *zap.Logger
}

func NewPresenceStore(db *badger.DB, logger *zap.Logger) *PresenceStore {
	return &PresenceStore{db: db, logger: logger}
}

func onlineKey(userID string) []byte   { return []byte("online:" + userID) }
func lastSeenKey(userID string) []byte { return []byte("lastseen:" + userID) }

func (s *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(onlineKey(userID), []byte("1")).WithTTL(onlineTTL))
	})
	if err != nil {
		return fmt.Errorf("set online %s: %w", userID, err)
	}
	return nil
}

func (s *PresenceStore) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(onlineKey(userID)); err != nil {
			return err
		}
		return txn.Set(lastSeenKey(userID), []byte(lastSeen.UTC().Format(time.RFC3339)))
	})
	if err != nil {
		return fmt.Errorf("set offline %s: %w", userID, err)
	}
	return nil
}

func (s *PresenceStore) Get(ctx context.Context, userID string) (models.Presence, error) {
	p := models.Presence{UserID: userID}

	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(onlineKey(userID)); err == nil {
			p.Online = true
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		item, err := txn.Get(lastSeenKey(userID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			t, err := time.Parse(time.RFC3339, string(v))
			if err == nil {
				p.LastSeen = t
			}
			return nil
		})
	})
	if err != nil {
		return models.Presence{}, fmt.Errorf("get presence %s: %w", userID, err)
	}
	return p, nil
}
