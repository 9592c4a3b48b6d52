// Package storage provides crash-safe file-based JSON storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when a key has no stored value.
	ErrNotFound = errors.New("not found")
)

// Storage provides file-based JSON storage under a base directory.
// Every write is atomic: exclusive-lock a temp file, write, fsync, rename.
// On any failure the previous target stays intact and the temp file is removed.
type Storage struct {
	basePath string
}

// New creates a new Storage instance.
func New(basePath string) *Storage {
	return &Storage{basePath: basePath}
}

// BasePath returns the root directory of this store.
func (s *Storage) BasePath() string {
	return s.basePath
}

// pathToFile converts a path slice to a file path.
func (s *Storage) pathToFile(path []string) string {
	parts := append([]string{s.basePath}, path...)
	return filepath.Join(parts...) + ".json"
}

// pathToDir converts a path slice to a directory path.
func (s *Storage) pathToDir(path []string) string {
	parts := append([]string{s.basePath}, path...)
	return filepath.Join(parts...)
}

// Get retrieves a value from storage under a shared advisory lock.
func (s *Storage) Get(ctx context.Context, path []string, v any) error {
	filePath := s.pathToFile(path)

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if err := lockShared(f); err != nil {
		return fmt.Errorf("failed to lock file: %w", err)
	}
	defer unlock(f)

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filePath, err)
	}
	return nil
}

// Put stores a value atomically. Parent directories are created if missing.
func (s *Storage) Put(ctx context.Context, path []string, v any) error {
	filePath := s.pathToFile(path)

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	return WriteFileAtomic(filePath, data)
}

// WriteFileAtomic writes data to target using the temp-write+fsync+rename
// sequence. The temp file holds an exclusive advisory lock for its lifetime.
func WriteFileAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := target + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	cleanup := func(err error) error {
		unlock(f)
		f.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := lockExclusive(f); err != nil {
		return cleanup(fmt.Errorf("failed to lock temp file: %w", err))
	}
	if _, err := f.Write(data); err != nil {
		return cleanup(fmt.Errorf("failed to write temp file: %w", err))
	}
	if err := f.Sync(); err != nil {
		return cleanup(fmt.Errorf("failed to sync temp file: %w", err))
	}
	unlock(f)
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Delete removes a value from storage. Deleting a missing key is a no-op.
func (s *Storage) Delete(ctx context.Context, path []string) error {
	if err := os.Remove(s.pathToFile(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// DeleteDir removes a whole subtree.
func (s *Storage) DeleteDir(ctx context.Context, path []string) error {
	return os.RemoveAll(s.pathToDir(path))
}

// List returns the item names at a path (directories and .json files).
func (s *Storage) List(ctx context.Context, path []string) ([]string, error) {
	entries, err := os.ReadDir(s.pathToDir(path))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var items []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			items = append(items, name)
		} else if strings.HasSuffix(name, ".json") {
			items = append(items, strings.TrimSuffix(name, ".json"))
		}
	}
	return items, nil
}

// Scan iterates over all JSON items at a path. Unreadable files are skipped.
func (s *Storage) Scan(ctx context.Context, path []string, fn func(key string, data json.RawMessage) error) error {
	dirPath := s.pathToDir(path)

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := readFileShared(filepath.Join(dirPath, name))
		if err != nil {
			continue
		}
		if err := fn(strings.TrimSuffix(name, ".json"), json.RawMessage(data)); err != nil {
			return err
		}
	}
	return nil
}

// readFileShared reads a file under the same shared advisory lock Get
// takes, so a scan never observes a write in progress.
func readFileShared(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := lockShared(f); err != nil {
		return nil, err
	}
	defer unlock(f)

	return io.ReadAll(f)
}

// Exists checks whether a key has a stored value.
func (s *Storage) Exists(ctx context.Context, path []string) bool {
	_, err := os.Stat(s.pathToFile(path))
	return err == nil
}
