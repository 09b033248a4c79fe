// Package revocation stores per-user revocation flags raised by platform
// uninstall and logout events.
//
// Flags are edge-triggered: the first session check that observes a flag
// clears it (see Observe). Setting a flag twice has the same effect as
// setting it once.
package revocation

import (
	"context"
	"errors"
)

var ErrEmptyUserID = errors.New("user id cannot be empty")

// Store is the revocation flag key-value abstraction, keyed by user id.
type Store interface {
	Revoke(ctx context.Context, userID string) error
	IsRevoked(ctx context.Context, userID string) (bool, error)
	Clear(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
	Close() error
}

// Consumer is implemented by stores that can read and clear a flag atomically.
type Consumer interface {
	Consume(ctx context.Context, userID string) (bool, error)
}

// Observe reports whether userID is revoked and clears the flag if it was set.
func Observe(ctx context.Context, s Store, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if c, ok := s.(Consumer); ok {
		return c.Consume(ctx, userID)
	}
	revoked, err := s.IsRevoked(ctx, userID)
	if err != nil || !revoked {
		return revoked, err
	}
	return true, s.Clear(ctx, userID)
}
