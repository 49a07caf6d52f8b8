// Package lockout throttles repeated unauthorized emergency-access
// activation attempts. A user who keeps failing the authorization check is
// hard-locked for a cooldown window before they may try again.
package lockout

import (
	"context"
	"time"
)

const (
	// DefaultThreshold is the number of failed activation attempts before a
	// user is locked out.
	DefaultThreshold = 3
	// DefaultDuration is how long a lock lasts once triggered.
	DefaultDuration = 15 * time.Minute
)

// Store tracks activation failures per user identifier.
type Store interface {
	// RecordFailure increments the failure count and returns the new total.
	RecordFailure(ctx context.Context, identifier string) (int, error)
	// IsLocked reports whether the identifier is currently locked and, if
	// so, when the lock expires.
	IsLocked(ctx context.Context, identifier string) (bool, *time.Time, error)
	// Clear drops all failure state for the identifier.
	Clear(ctx context.Context, identifier string) error
}
