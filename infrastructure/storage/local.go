package storage

import (
	"context"
	"os"
	"path/filepath"
)

// LocalStorage implements ports.StorageProvider on the local filesystem.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a storage provider rooted at dir; an empty dir
// uses the system temp directory.
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{root: dir}
}

// TempDir creates a private scratch directory
func (s *LocalStorage) TempDir(_ context.Context, pattern string) (string, error) {
	root := s.root
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(root, pattern)
	if err != nil {
		return "", err
	}
	return filepath.Abs(dir)
}

// WriteFile stores data at path with owner-only permissions
func (s *LocalStorage) WriteFile(_ context.Context, path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}

// ReadFile returns the bytes stored at path
func (s *LocalStorage) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// RemoveAll deletes path and everything below it
func (s *LocalStorage) RemoveAll(_ context.Context, path string) error {
	return os.RemoveAll(path)
}
