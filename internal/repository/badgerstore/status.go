package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

// StatusStore keeps per-recipient acknowledgement rows under
// "status:{messageID}:{userID}".
type StatusStore struct {
	db     *badger.DB
	logger *zap.Logger
}

func NewStatusStore(db *badger.DB, logger *zap.Logger) *StatusStore {
	return &StatusStore{db: db, logger: logger}
}

func statusKey(messageID, userID string) []byte {
	return []byte(fmt.Sprintf("status:%s:%s", messageID, userID))
}

func (s *StatusStore) Put(ctx context.Context, st models.MessageStatus) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, statusKey(st.MessageID, st.UserID), st)
	})
	if err != nil {
		return fmt.Errorf("put status %s/%s: %w", st.MessageID, st.UserID, err)
	}
	return nil
}

func (s *StatusStore) ListByMessage(ctx context.Context, messageID string) ([]models.MessageStatus, error) {
	statuses := make([]models.MessageStatus, 0)
	prefix := []byte(fmt.Sprintf("status:%s:", messageID))

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var st models.MessageStatus
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &st)
			}); err != nil {
				return err
			}
			statuses = append(statuses, st)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list statuses for %s: %w", messageID, err)
	}
	return statuses, nil
}
