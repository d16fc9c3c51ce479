package storage

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// ErrUnknownBackend indicates an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Backend names accepted by Open.
const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
)

// Record is a flat set of named fields stored under one key.
// Values come back as whatever the backend decoded (numbers or strings);
// callers are expected to coerce them.
type Record map[string]any

// KeyValue persists flat records under fixed keys.
type KeyValue interface {
	Load(key string) (Record, bool, error)
	Save(key string, record Record) error
	Delete(key string) error
	Close() error
}

// Open creates a KeyValue store for the given backend.
// An empty path resolves to a file in dir named after the backend.
func Open(backend, path, dir string) (KeyValue, error) {
	switch backend {
	case BackendYAML, "":
		if path == "" {
			path = filepath.Join(dir, "state.yaml")
		}
		return NewYAMLStore(path), nil
	case BackendSQLite:
		if path == "" {
			path = filepath.Join(dir, "state.db")
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("open %q: %w", backend, ErrUnknownBackend)
	}
}

func copyRecord(record Record) Record {
	if record == nil {
		return nil
	}
	clone := make(Record, len(record))
	for field, value := range record {
		clone[field] = value
	}
	return clone
}
