// Package storage keeps uploaded document bytes outside the database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidLocator is returned for keys that escape the storage root.
var ErrInvalidLocator = errors.New("invalid storage locator")

// FileStore stores opaque blobs under string locators.
type FileStore interface {
	Store(ctx context.Context, key string, data []byte) (string, error)
	Retrieve(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}

// LocalStore writes blobs to a directory on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Root returns the absolute storage directory
func (s *LocalStore) Root() string {
	return s.root
}

// Store writes data to key through a temp file so readers never see a partial blob.
// The returned locator is key in slash form.
func (s *LocalStore) Store(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

// Retrieve reads the blob at locator
func (s *LocalStore) Retrieve(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Delete removes the blob at locator. Missing blobs are not an error.
func (s *LocalStore) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) {
		return "", ErrInvalidLocator
	}
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if path == s.root || !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", ErrInvalidLocator
	}
	return path, nil
}
