package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

// UserStore is the embedded-mode user directory. Production runs use
// the postgres implementation; this one backs single-node deployments
// and the test suite.
type UserStore struct {
	db     *badger.DB
	logger *zap.Logger
}

func NewUserStore(db *badger.DB, logger *zap.Logger) *UserStore {
	return &UserStore{db: db, logger: logger}
}

func userKey(userID string) []byte {
	return []byte("user:" + userID)
}

func userEmailKey(email string) []byte {
	return []byte("useremail:" + email)
}

func (s *UserStore) Create(ctx context.Context, user models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		// Enforce email uniqueness inside the transaction: the email
		// index doubles as the lock.
		_, err := txn.Get(userEmailKey(user.Email))
		if err == nil {
			return errors.New("email already registered")
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := setJSON(txn, userKey(user.ID), user); err != nil {
			return err
		}
		return txn.Set(userEmailKey(user.Email), []byte(user.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, userKey(userID), &user)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userEmailKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var id []byte
		if err := item.Value(func(v []byte) error {
			id = append(id, v...)
			return nil
		}); err != nil {
			return err
		}
		found, err = getJSON(txn, userKey(string(id)), &user)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	prefix := []byte("user:")

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user models.User
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &user)
			}); err != nil {
				return err
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
