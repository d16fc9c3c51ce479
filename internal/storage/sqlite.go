package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cast"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteStore keeps records as one row per field.
type SQLiteStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		key TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (key, field)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (store *SQLiteStore) Path() string {
	return store.path
}

// Load returns the record stored under key.
func (store *SQLiteStore) Load(key string) (Record, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.db == nil {
		return nil, false, ErrClosed
	}

	rows, err := store.db.Query(`SELECT field, value FROM records WHERE key = ?`, key)
	if err != nil {
		return nil, false, fmt.Errorf("select record: %w", err)
	}
	defer func() { _ = rows.Close() }()

	record := Record{}
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, false, fmt.Errorf("scan: %w", err)
		}
		record[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate record: %w", err)
	}
	if len(record) == 0 {
		return nil, false, nil
	}
	return record, true, nil
}

// Save replaces every field stored under key.
func (store *SQLiteStore) Save(key string, record Record) (retErr error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.db == nil {
		return ErrClosed
	}

	tx, err := store.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.Exec(`DELETE FROM records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clear record: %w", err)
	}
	for field, value := range record {
		text, err := cast.ToStringE(value)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", field, err)
		}
		if _, err := tx.Exec(`INSERT INTO records(key, field, value) VALUES(?, ?, ?)`, key, field, text); err != nil {
			return fmt.Errorf("insert field %s: %w", field, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes every field stored under key.
func (store *SQLiteStore) Delete(key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.db == nil {
		return ErrClosed
	}
	if _, err := store.db.Exec(`DELETE FROM records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Close releases the database handle. Closing twice is a no-op.
func (store *SQLiteStore) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.db == nil {
		return nil
	}
	err := store.db.Close()
	store.db = nil
	return err
}
