package breakglass

import (
	"context"

	id "verdant/pkg/domain"
)

// SessionStore persists break-glass sessions. Create must enforce the
// one-active-session-per-user rule under its own lock; Execute holds the lock
// (mutex or FOR UPDATE) across both validation and mutation.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*Session, error)
	FindActiveByUser(ctx context.Context, userID id.UserID) (*Session, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*Session, error)
	Execute(ctx context.Context, sessionID id.SessionID, validate func(*Session) error, mutate func(*Session)) (*Session, error)
}
