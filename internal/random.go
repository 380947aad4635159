package internal

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewSessionID returns a time-ordered UUIDv7 string. Lexicographic order of
// IDs follows creation order at millisecond granularity.
func NewSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewUserID returns a random UUIDv7 string for a new account.
func NewUserID() (string, error) {
	return NewSessionID()
}

// HashToken returns the hex SHA-256 of a bearer token. Only the hash is
// persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
