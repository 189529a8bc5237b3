package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/norma/internal/models"
)

// DirStore keeps one indented JSON file per norm, named {id}.json.
type DirStore struct {
	dir string
	// mu makes Create's existence check and write atomic within the process.
	mu sync.Mutex
}

// NewDirStore creates dir if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vigencia directory: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

func (s *DirStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Get reads the record for id.
func (s *DirStore) Get(_ context.Context, id string) (*models.Norma, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("norm %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read norm %s: %w", id, err)
	}
	var n models.Norma
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to decode norm %s: %v: %w", id, err, models.ErrStructural)
	}
	return &n, nil
}

// Create writes n unless a file for its id exists.
func (s *DirStore) Create(ctx context.Context, n *models.Norma) error {
	if err := checkID(n.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path(n.ID)); err == nil {
		return fmt.Errorf("norm %s already exists: %w", n.ID, models.ErrConflict)
	}
	return s.write(n)
}

// Put overwrites the record for n.ID.
func (s *DirStore) Put(_ context.Context, n *models.Norma) error {
	if err := checkID(n.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(n)
}

func (s *DirStore) write(n *models.Norma) error {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode norm %s: %w", n.ID, err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+n.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write norm %s: %w", n.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write norm %s: %w", n.ID, err)
	}
	if err := os.Rename(tmp.Name(), s.path(n.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace norm %s: %w", n.ID, err)
	}
	return nil
}

// List returns the ids of all *.json files in the directory.
func (s *DirStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list vigencia directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if models.ValidNormID(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op.
func (s *DirStore) Close() error { return nil }
