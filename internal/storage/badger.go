package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/hyperjump/norma/internal/models"
)

const normKeyPrefix = "norma:"

func normKey(id string) []byte {
	return []byte(normKeyPrefix + id)
}

// BadgerStore keeps one key per norm in an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a BadgerDB at dir. An empty dir opens an in-memory database.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = nil
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get returns the record for id.
func (s *BadgerStore) Get(_ context.Context, id string) (*models.Norma, error) {
	var n models.Norma
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(normKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &n); err != nil {
				return fmt.Errorf("failed to decode norm %s: %v: %w", id, err, models.ErrStructural)
			}
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("norm %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Create writes n in a transaction that fails when the key exists.
func (s *BadgerStore) Create(_ context.Context, n *models.Norma) error {
	if err := checkID(n.ID); err != nil {
		return err
	}
	val, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode norm %s: %w", n.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(normKey(n.ID))
		if err == nil {
			return fmt.Errorf("norm %s already exists: %w", n.ID, models.ErrConflict)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(normKey(n.ID), val)
	})
}

// Put overwrites the record for n.ID.
func (s *BadgerStore) Put(_ context.Context, n *models.Norma) error {
	if err := checkID(n.ID); err != nil {
		return err
	}
	val, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode norm %s: %w", n.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(normKey(n.ID), val)
	})
}

// List returns all ids; badger iterates keys in byte order.
func (s *BadgerStore) List(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(normKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(normKeyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list normas: %w", err)
	}
	return ids, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
