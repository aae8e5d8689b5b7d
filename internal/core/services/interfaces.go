package services

import (
	"context"
)

// FileStore keeps document bytes. Locators are opaque to callers.
type FileStore interface {
	Store(ctx context.Context, key string, data []byte) (string, error)
	Retrieve(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}

// PasswordHasher hashes and verifies user passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}
