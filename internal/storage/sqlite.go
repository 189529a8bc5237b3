package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/norma/internal/models"
)

// SQLiteStore keeps one row per norm with the record as JSON.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS normas (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		record TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_normas_status ON normas(status);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the record for id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Norma, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM normas WHERE id = ?`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("norm %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query norm %s: %w", id, err)
	}
	var n models.Norma
	if err := json.Unmarshal([]byte(record), &n); err != nil {
		return nil, fmt.Errorf("failed to decode norm %s: %v: %w", id, err, models.ErrStructural)
	}
	return &n, nil
}

// Create inserts n; an existing id yields models.ErrConflict.
func (s *SQLiteStore) Create(ctx context.Context, n *models.Norma) error {
	if err := checkID(n.ID); err != nil {
		return err
	}
	record, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode norm %s: %w", n.ID, err)
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO normas (id, name, kind, status, record, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Name, string(n.Kind), string(n.Status), string(record), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert norm %s: %w", n.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("norm %s already exists: %w", n.ID, models.ErrConflict)
	}
	return nil
}

// Put inserts or replaces the record for n.ID.
func (s *SQLiteStore) Put(ctx context.Context, n *models.Norma) error {
	if err := checkID(n.ID); err != nil {
		return err
	}
	record, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode norm %s: %w", n.ID, err)
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO normas (id, name, kind, status, record, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name, kind = excluded.kind, status = excluded.status,
		   record = excluded.record, updated_at = excluded.updated_at`,
		n.ID, n.Name, string(n.Kind), string(n.Status), string(record), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to store norm %s: %w", n.ID, err)
	}
	return nil
}

// List returns all ids in ascending order.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM normas ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list normas: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
