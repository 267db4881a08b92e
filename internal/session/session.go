// Package session maps opaque cookie tokens to user ids.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session: not found")

const DefaultTTL = 4 * time.Hour

type Store interface {
	Create(ctx context.Context, userID uuid.UUID) (string, error)
	// Lookup returns ErrNotFound for unknown or expired tokens.
	Lookup(ctx context.Context, token string) (uuid.UUID, error)
	Delete(ctx context.Context, token string) error
}

func newToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
