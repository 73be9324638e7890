package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

// connectionTTL bounds how long a registration outlives its socket when
// neither a disconnect nor a failed push cleans it up.
const connectionTTL = 24 * time.Hour

// ConnectionStore registers live connections under
// "conn:{connectionID}" with a per-user reverse index
// "userconn:{userID}:{connectionID}". Both entries carry the same TTL,
// so an abandoned registration disappears from lookups by itself.
type ConnectionStore struct {
	db     *badger.DB
	logger *zap.Logger
}

func NewConnectionStore(db *badger.DB, logger *zap.Logger) *ConnectionStore {
	return &ConnectionStore{db: db, logger: logger}
}

func connKey(connectionID string) []byte {
	return []byte("conn:" + connectionID)
}

func userConnKey(userID, connectionID string) []byte {
	return []byte(fmt.Sprintf("userconn:%s:%s", userID, connectionID))
}

func (s *ConnectionStore) Register(ctx context.Context, conn models.Connection) error {
	data, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry(connKey(conn.ConnectionID), data).WithTTL(connectionTTL)); err != nil {
			return err
		}
		idx := badger.NewEntry(userConnKey(conn.UserID, conn.ConnectionID), []byte(conn.ConnectionID)).WithTTL(connectionTTL)
		return txn.SetEntry(idx)
	})
	if err != nil {
		return fmt.Errorf("register connection %s: %w", conn.ConnectionID, err)
	}
	return nil
}

func (s *ConnectionStore) Unregister(ctx context.Context, connectionID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var conn models.Connection
		found, err := getJSON(txn, connKey(connectionID), &conn)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		if err := txn.Delete(connKey(connectionID)); err != nil {
			return err
		}
		return txn.Delete(userConnKey(conn.UserID, connectionID))
	})
	if err != nil {
		return fmt.Errorf("unregister connection %s: %w", connectionID, err)
	}
	return nil
}

func (s *ConnectionStore) ConnectionsFor(ctx context.Context, userID string) ([]string, error) {
	ids := make([]string, 0)
	prefix := []byte(fmt.Sprintf("userconn:%s:", userID))

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				ids = append(ids, string(v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connections for user %s: %w", userID, err)
	}
	return ids, nil
}
