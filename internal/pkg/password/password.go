// Package password hashes user passwords and refresh tokens.
package password

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is used when the configured bcrypt cost is out of range
	DefaultCost = 12
	// MinLength is the shortest accepted password, in characters
	MinLength = 8
	// MaxBytes is bcrypt's input limit; longer passwords are rejected rather than truncated
	MaxBytes = 72
)

// Hasher hashes and verifies passwords with bcrypt at a fixed cost
type Hasher struct {
	Cost int
}

// NewHasher creates a bcrypt hasher
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{Cost: cost}
}

func (h *Hasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (h *Hasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// HashToken returns the hex SHA-256 of a refresh token. Only this digest is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidatePassword reports whether password is long enough and fits bcrypt's limit
func ValidatePassword(password string) bool {
	return utf8.RuneCountInString(password) >= MinLength && len(password) <= MaxBytes
}
