// Package storage persists norm validity records.
package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/norma/internal/models"
)

// NormStore defines norm record persistence operations.
// Get returns models.ErrNotFound for unknown ids; Create returns
// models.ErrConflict when the id is already taken.
type NormStore interface {
	Get(ctx context.Context, id string) (*models.Norma, error)
	Create(ctx context.Context, n *models.Norma) error
	Put(ctx context.Context, n *models.Norma) error
	// List returns every stored id in ascending order.
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendDir    = "dir"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Open returns the store for the named backend rooted at path.
func Open(backend, path string) (NormStore, error) {
	switch backend {
	case "", BackendDir:
		return NewDirStore(path)
	case BackendSQLite:
		return NewSQLiteStore(path)
	case BackendBadger:
		return NewBadgerStore(path)
	default:
		return nil, fmt.Errorf("unknown vigencia backend %q: %w", backend, models.ErrInvalid)
	}
}

func checkID(id string) error {
	if !models.ValidNormID(id) {
		return fmt.Errorf("invalid norm id %q: %w", id, models.ErrInvalid)
	}
	return nil
}
