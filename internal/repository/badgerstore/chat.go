package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

// ChatStore keeps one row per (chatID, userID) under
// "chat:{chatID}:{userID}", plus a per-user index key
// "userchat:{userID}:{chatID}" pointing back at the row, so both
// "all members of a chat" and "all chats of a user" are prefix scans.
type ChatStore struct {
	db     *badger.DB
	logger *zap.Logger
}

func NewChatStore(db *badger.DB, logger *zap.Logger) *ChatStore {
	return &ChatStore{db: db, logger: logger}
}

func chatKey(chatID, userID string) []byte {
	return []byte(fmt.Sprintf("chat:%s:%s", chatID, userID))
}

func userChatKey(userID, chatID string) []byte {
	return []byte(fmt.Sprintf("userchat:%s:%s", userID, chatID))
}

func (s *ChatStore) Put(ctx context.Context, chat models.Chat) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, chatKey(chat.ChatID, chat.UserID), chat); err != nil {
			return err
		}
		return txn.Set(userChatKey(chat.UserID, chat.ChatID), chatKey(chat.ChatID, chat.UserID))
	})
	if err != nil {
		return fmt.Errorf("put chat row %s/%s: %w", chat.ChatID, chat.UserID, err)
	}
	return nil
}

func (s *ChatStore) Get(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	var chat models.Chat
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, chatKey(chatID, userID), &chat)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get chat row %s/%s: %w", chatID, userID, err)
	}
	if !found {
		return nil, nil
	}
	return &chat, nil
}

func (s *ChatStore) ListByUser(ctx context.Context, userID string) ([]models.Chat, error) {
	chats := make([]models.Chat, 0)
	prefix := []byte(fmt.Sprintf("userchat:%s:", userID))

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rowKey []byte
			err := it.Item().Value(func(v []byte) error {
				rowKey = append(rowKey, v...)
				return nil
			})
			if err != nil {
				return err
			}

			var chat models.Chat
			found, err := getJSON(txn, rowKey, &chat)
			if err != nil {
				return err
			}
			if !found {
				// Dangling index entry: the row was deleted after the
				// index write. Skip it; the next Delete sweeps it.
				continue
			}
			chats = append(chats, chat)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list chats for user %s: %w", userID, err)
	}
	return chats, nil
}

func (s *ChatStore) ListByChat(ctx context.Context, chatID string) ([]models.Chat, error) {
	chats := make([]models.Chat, 0)
	prefix := []byte(fmt.Sprintf("chat:%s:", chatID))

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var chat models.Chat
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &chat)
			})
			if err != nil {
				return err
			}
			chats = append(chats, chat)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list rows for chat %s: %w", chatID, err)
	}
	return chats, nil
}

func (s *ChatStore) UpdateLastActivity(ctx context.Context, chatID, userID string, ts int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var chat models.Chat
		found, err := getJSON(txn, chatKey(chatID, userID), &chat)
		if err != nil {
			return err
		}
		if !found {
			// The participant's row may not exist yet (one-sided
			// creation after a crash). Cursor updates are best-effort;
			// absence is not an error.
			return nil
		}
		chat.LastActivityAt = ts
		return setJSON(txn, chatKey(chatID, userID), chat)
	})
	if err != nil {
		return fmt.Errorf("update last activity %s/%s: %w", chatID, userID, err)
	}
	return nil
}

func (s *ChatStore) Delete(ctx context.Context, chatID, userID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(chatKey(chatID, userID)); err != nil {
			return err
		}
		return txn.Delete(userChatKey(userID, chatID))
	})
	if err != nil {
		return fmt.Errorf("delete chat row %s/%s: %w", chatID, userID, err)
	}
	return nil
}
