// Package badgerstore implements the repository interfaces on an
// embedded BadgerDB. Keys are designed so that every access pattern is
// a point lookup or a prefix scan: zero-padded unix-millisecond
// timestamps inside message keys make lexicographic order equal
// chronological order.
package badgerstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Open opens (or creates) the badger database at path. Badger's own
// logging is noisy at INFO, so it is silenced; operational logging
// happens at the repository layer.
func Open(path string, logger *zap.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	logger.Info("badger store opened", zap.String("path", path))
	return db, nil
}

// getJSON loads and unmarshals one key inside an existing transaction.
// Returns (false, nil) when the key does not exist.
func getJSON(txn *badger.Txn, key []byte, out any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(v []byte) error {
		return json.Unmarshal(v, out)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func setJSON(txn *badger.Txn, key []byte, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}
