package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// YAMLStore keeps every record in a single YAML document.
// The file is read on each Load and rewritten on each mutation.
type YAMLStore struct {
	mu     sync.Mutex
	path   string
	closed bool
}

// NewYAMLStore returns a store backed by the file at path.
// The file and its directory are created on first save.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

// Path returns the backing file path.
func (store *YAMLStore) Path() string {
	return store.path
}

// Load returns the record stored under key.
func (store *YAMLStore) Load(key string) (Record, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.closed {
		return nil, false, ErrClosed
	}

	document, err := store.readLocked()
	if err != nil {
		return nil, false, err
	}
	record, ok := document[key]
	if !ok {
		return nil, false, nil
	}
	return copyRecord(record), true, nil
}

// Save replaces the record stored under key.
func (store *YAMLStore) Save(key string, record Record) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.closed {
		return ErrClosed
	}

	document, err := store.readLocked()
	if err != nil {
		return err
	}
	document[key] = copyRecord(record)
	return store.writeLocked(document)
}

// Delete removes the record stored under key. Missing keys are ignored.
func (store *YAMLStore) Delete(key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.closed {
		return ErrClosed
	}

	document, err := store.readLocked()
	if err != nil {
		return err
	}
	if _, ok := document[key]; !ok {
		return nil
	}
	delete(document, key)
	return store.writeLocked(document)
}

// Close marks the store closed.
func (store *YAMLStore) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.closed = true
	return nil
}

func (store *YAMLStore) readLocked() (map[string]Record, error) {
	document := make(map[string]Record)
	rawData, err := os.ReadFile(store.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return document, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	if err := yaml.Unmarshal(rawData, &document); err != nil {
		return nil, fmt.Errorf("parse state yaml: %w", err)
	}
	if document == nil {
		document = make(map[string]Record)
	}
	return document, nil
}

func (store *YAMLStore) writeLocked(document map[string]Record) error {
	if err := os.MkdirAll(filepath.Dir(store.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	serialized, err := yaml.Marshal(document)
	if err != nil {
		return fmt.Errorf("marshal state yaml: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(store.path), ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tempPath := tempFile.Name()
	if _, err := tempFile.Write(serialized); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tempPath, store.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
