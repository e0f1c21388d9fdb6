package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

// FileStateRepository keeps client state as a small JSON object on disk,
// readable only by the current user.
type FileStateRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileStateRepository constructs a file-backed repository at path.
func NewFileStateRepository(path string) *FileStateRepository {
	return &FileStateRepository{path: path}
}

// Load returns the stored value or appErrors.ErrNotFound.
func (r *FileStateRepository) Load(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.read()
	if err != nil {
		return "", err
	}
	value, ok := entries[key]
	if !ok || value == "" {
		return "", appErrors.ErrNotFound
	}
	return value, nil
}

// Save writes the value, replacing the file atomically.
func (r *FileStateRepository) Save(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.read()
	if err != nil {
		return err
	}
	entries[key] = value
	return r.write(entries)
}

// Delete removes the value. A missing file or key is not an error.
func (r *FileStateRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.read()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return r.write(entries)
}

func (r *FileStateRepository) read() (map[string]string, error) {
	entries := make(map[string]string)
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(raw) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w", r.path, err)
	}
	return entries, nil
}

func (r *FileStateRepository) write(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
