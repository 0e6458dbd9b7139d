package entity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Persistence collaborator for one calendar: the entity loads the
// serialized aggregate once at construction and stores the whole thing
// back after every successful mutation or remote refresh.
type Store interface {
	Load(ctx context.Context) (string, error)
	Store(ctx context.Context, content string) error
}

// Store backed by a single .ics file
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load the persisted calendar text; a missing file is an empty calendar
func (s *FileStore) Load(_ context.Context) (string, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("FileStore.Load: %w", err)
	}
	return string(content), nil
}

// Store the calendar text, creating the data dir on first write
func (s *FileStore) Store(_ context.Context, content string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("FileStore.Store: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("FileStore.Store: %w", err)
	}
	return nil
}

// Remove the persisted file, used when a calendar is unregistered
func (s *FileStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("FileStore.Remove: %w", err)
	}
	return nil
}
