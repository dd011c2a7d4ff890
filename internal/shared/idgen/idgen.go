// Package idgen provides the UUID-backed IDGenerator every substrate
// context's ports.IDGenerator interface is structurally satisfied by.
package idgen

import (
	"context"

	"github.com/google/uuid"
)

// UUID is a zero-value IDGenerator backed by google/uuid.
type UUID struct{}

// NewID returns a new random UUIDv4 string.
func (UUID) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
