package badgerstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

// MessageStore appends messages under
// "msg:{chatID}:{timestamp %019d}:{messageID}". The zero-padded
// unix-millisecond timestamp makes lexicographic key order equal
// chronological order, with the messageID as collision tiebreak when
// two messages land on the same millisecond. A secondary key
// "msgid:{messageID}" points at the log key so status updates can find
// a message without knowing its chat or timestamp.
type MessageStore struct {
	db     *badger.DB
	logger *zap.Logger
}

func NewMessageStore(db *badger.DB, logger *zap.Logger) *MessageStore {
	return &MessageStore{db: db, logger: logger}
}

func messageKey(chatID string, ts int64, messageID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", chatID, ts, messageID))
}

func messageIDKey(messageID string) []byte {
	return []byte("msgid:" + messageID)
}

func (s *MessageStore) Put(ctx context.Context, msg models.Message) error {
	key := messageKey(msg.ChatID, msg.Timestamp, msg.MessageID)
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, key, msg); err != nil {
			return err
		}
		return txn.Set(messageIDKey(msg.MessageID), key)
	})
	if err != nil {
		return fmt.Errorf("put message %s: %w", msg.MessageID, err)
	}
	return nil
}

func (s *MessageStore) Get(ctx context.Context, messageID string) (*models.Message, error) {
	var msg models.Message
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageIDKey(messageID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var logKey []byte
		if err := item.Value(func(v []byte) error {
			logKey = append(logKey, v...)
			return nil
		}); err != nil {
			return err
		}
		found, err = getJSON(txn, logKey, &msg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}
	if !found {
		return nil, nil
	}
	return &msg, nil
}

// ListByChat walks the log backwards (newest first). The continuation
// token is the base64 of the last key served; the next page seeks to it
// and skips one entry. An empty returned token means the log is
// exhausted.
func (s *MessageStore) ListByChat(ctx context.Context, chatID string, limit int, cursor string) ([]models.Message, string, error) {
	if limit <= 0 {
		limit = 50
	}
	prefix := []byte(fmt.Sprintf("msg:%s:", chatID))

	// Reverse iteration needs a seek position past every key in the
	// prefix range; 0xFF sorts after any printable key byte.
	start := append(append([]byte{}, prefix...), 0xFF)
	skipFirst := false
	if cursor != "" {
		decoded, err := base64.URLEncoding.DecodeString(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("decode cursor: %w", err)
		}
		start = decoded
		skipFirst = true
	}

	messages := make([]models.Message, 0, limit)
	var lastKey []byte
	more := false

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchSize = limit
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(start)
		if skipFirst && it.ValidForPrefix(prefix) {
			it.Next()
		}
		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				more = true
				return nil
			}
			var msg models.Message
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, msg)
			lastKey = it.Item().KeyCopy(lastKey[:0])
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("list messages for chat %s: %w", chatID, err)
	}

	next := ""
	if more {
		next = base64.URLEncoding.EncodeToString(lastKey)
	}
	return messages, next, nil
}

func (s *MessageStore) UpdateStatus(ctx context.Context, messageID, status string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(messageIDKey(messageID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var logKey []byte
		if err := item.Value(func(v []byte) error {
			logKey = append(logKey, v...)
			return nil
		}); err != nil {
			return err
		}

		var msg models.Message
		found, err := getJSON(txn, logKey, &msg)
		if err != nil || !found {
			return err
		}
		msg.Status = status
		return setJSON(txn, logKey, msg)
	})
	if err != nil {
		return fmt.Errorf("update status of %s: %w", messageID, err)
	}
	return nil
}
