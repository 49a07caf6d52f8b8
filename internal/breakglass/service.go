package breakglass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"verdant/internal/access"
	"verdant/internal/audit"
	"verdant/internal/breakglass/lockout"
	bgmetrics "verdant/internal/breakglass/metrics"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/platform/sentinel"
	"verdant/pkg/requestcontext"
)

// UserDirectory is the slice of the permission engine the controller needs:
// resolving users and checking role membership. Satisfied by *access.Engine.
type UserDirectory interface {
	GetUser(ctx context.Context, userID id.UserID) (*access.User, error)
	HasRole(ctx context.Context, userID id.UserID, roleName string) (bool, error)
}

// Controller governs emergency-access sessions: who may open one, how the
// activation is justified, and how every action taken under one is tagged in
// the audit ledger.
type Controller struct {
	sessions SessionStore
	users    UserDirectory
	auditLog *audit.Log
	differ   *audit.Differ
	lockouts lockout.Store
	logger   *slog.Logger
	metrics  *bgmetrics.Metrics
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithMetrics(m *bgmetrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLockouts enables throttling of repeated unauthorized activation
// attempts. Without it, unauthorized attempts are denied but never locked out.
func WithLockouts(store lockout.Store) Option {
	return func(c *Controller) { c.lockouts = store }
}

func New(sessions SessionStore, users UserDirectory, auditLog *audit.Log, differ *audit.Differ, opts ...Option) (*Controller, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if users == nil {
		return nil, errors.New("user directory is required")
	}
	if auditLog == nil {
		return nil, errors.New("audit log is required")
	}
	if differ == nil {
		return nil, errors.New("change differ is required")
	}

	c := &Controller{
		sessions: sessions,
		users:    users,
		auditLog: auditLog,
		differ:   differ,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IsAuthorizedForBreakGlass reports whether the user may open an emergency
// session: they must exist, be active, and hold the Admin role.
func (c *Controller) IsAuthorizedForBreakGlass(ctx context.Context, userID id.UserID) (bool, error) {
	user, err := c.users.GetUser(ctx, userID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	if !user.IsActive || user.AccessExpired(requestcontext.Now(ctx)) {
		return false, nil
	}
	return c.users.HasRole(ctx, userID, access.RoleAdmin)
}

// Activate opens a break-glass session for the user. The justification reason
// is mandatory and immutable; the activation itself counts as the session's
// first action.
func (c *Controller) Activate(ctx context.Context, userID id.UserID, reason, authMethod string) (*Session, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) < MinReasonLength {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("justification reason must be at least %d characters", MinReasonLength))
	}
	authMethod = strings.TrimSpace(authMethod)

	if c.lockouts != nil {
		locked, until, err := c.lockouts.IsLocked(ctx, userID.String())
		if err != nil {
			c.logger.ErrorContext(ctx, "lockout check failed", "error", err, "user_id", userID)
		} else if locked {
			c.denied(ctx, userID, "locked_out")
			msg := "too many failed break-glass activation attempts"
			if until != nil {
				msg = fmt.Sprintf("%s; locked until %s", msg, until.UTC().Format(time.RFC3339))
			}
			return nil, dErrors.New(dErrors.CodeForbidden, msg)
		}
	}

	authorized, err := c.IsAuthorizedForBreakGlass(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !authorized {
		c.recordFailure(ctx, userID)
		c.denied(ctx, userID, "unauthorized")
		return nil, dErrors.New(dErrors.CodeForbidden, "user is not authorized for break-glass access")
	}

	user, err := c.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	rawAgent := requestcontext.UserAgent(ctx)
	browser, os := ParseUserAgent(rawAgent)
	session := &Session{
		ID:                   id.NewSessionID(),
		UserID:               userID,
		UserName:             user.Name,
		Reason:               reason,
		AuthenticationMethod: authMethod,
		IPAddress:            requestcontext.ClientIP(ctx),
		UserAgent:            rawAgent,
		Browser:              browser,
		OS:                   os,
		IsActive:             true,
		ActionCount:          1,
		ActivatedAt:          now,
	}

	if err := c.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			c.denied(ctx, userID, "already_active")
			return nil, dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("user %s already has an active break-glass session", user.Name))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create break-glass session")
	}

	if c.lockouts != nil {
		if err := c.lockouts.Clear(ctx, userID.String()); err != nil {
			c.logger.ErrorContext(ctx, "lockout clear failed", "error", err, "user_id", userID)
		}
	}

	sessionID := session.ID
	c.auditLog.Append(ctx, audit.Entry{
		Action:              audit.ActionActivateBreakGlass,
		EntityType:          audit.EntityBreakGlassSession,
		EntityID:            session.ID.String(),
		UserID:              userID,
		UserName:            user.Name,
		ChangeNote:          reason,
		Changes:             c.differ.Diff(audit.EntityBreakGlassSession, audit.Snapshot{}, session.AuditSnapshot()),
		IsBreakGlassAction:  true,
		BreakGlassSessionID: &sessionID,
	})

	if c.metrics != nil {
		c.metrics.Activations.Inc()
		c.metrics.ActiveSessions.Inc()
	}
	c.logger.WarnContext(ctx, "break-glass session activated",
		"session_id", session.ID,
		"user_id", userID,
		"ip", session.IPAddress,
	)
	return session, nil
}

// Deactivate closes an active session. Anyone with the authority to call this
// may close any user's session; the closer's identity is recorded on the
// session and in the ledger. The deactivation entry itself is not tagged as a
// break-glass action: the emergency window is over.
func (c *Controller) Deactivate(ctx context.Context, sessionID id.SessionID, note string) (*Session, error) {
	now := requestcontext.Now(ctx)
	deactivatedBy := requestcontext.UserID(ctx)
	deactivatedByName := requestcontext.UserName(ctx)

	var before audit.Snapshot
	session, err := c.sessions.Execute(ctx, sessionID,
		func(s *Session) error {
			if !s.IsActive {
				return dErrors.New(dErrors.CodeConflict, "break-glass session is already deactivated")
			}
			before = s.AuditSnapshot()
			return nil
		},
		func(s *Session) {
			s.IsActive = false
			s.DeactivatedAt = &now
			s.DeactivatedBy = &deactivatedBy
			s.DeactivatedByName = deactivatedByName
			s.DeactivationNote = strings.TrimSpace(note)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "break-glass session not found")
		}
		return nil, err
	}

	c.auditLog.Append(ctx, audit.Entry{
		Action:     audit.ActionDeactivateBreakGlass,
		EntityType: audit.EntityBreakGlassSession,
		EntityID:   session.ID.String(),
		UserID:     deactivatedBy,
		UserName:   deactivatedByName,
		ChangeNote: session.DeactivationNote,
		Changes:    c.differ.Diff(audit.EntityBreakGlassSession, before, session.AuditSnapshot()),
	})

	if c.metrics != nil {
		c.metrics.Deactivations.Inc()
		c.metrics.ActiveSessions.Dec()
	}
	c.logger.InfoContext(ctx, "break-glass session deactivated",
		"session_id", session.ID,
		"deactivated_by", deactivatedBy,
	)
	return session, nil
}

// IncrementActionCount bumps the session's action tally. Inactive or unknown
// sessions are a silent no-op: the caller has already committed its mutation
// and the tally must never fail it.
func (c *Controller) IncrementActionCount(ctx context.Context, sessionID id.SessionID) {
	_, err := c.sessions.Execute(ctx, sessionID,
		func(s *Session) error {
			if !s.IsActive {
				return sentinel.ErrInvalidState
			}
			return nil
		},
		func(s *Session) {
			s.ActionCount++
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidState) {
			return
		}
		c.logger.ErrorContext(ctx, "failed to increment break-glass action count",
			"error", err, "session_id", sessionID)
		return
	}
	if c.metrics != nil {
		c.metrics.SessionActions.Inc()
	}
}

// GetActiveSession returns the user's active session, or nil if they have
// none.
func (c *Controller) GetActiveSession(ctx context.Context, userID id.UserID) (*Session, error) {
	session, err := c.sessions.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find active session")
	}
	return session, nil
}

// GetSession resolves a session by ID.
func (c *Controller) GetSession(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	session, err := c.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "break-glass session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find session")
	}
	return session, nil
}

// GetSessions lists the user's sessions newest-first, optionally restricted
// to active ones.
func (c *Controller) GetSessions(ctx context.Context, userID id.UserID, activeOnly bool) ([]*Session, error) {
	sessions, err := c.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}
	if !activeOnly {
		return sessions, nil
	}
	var active []*Session
	for _, session := range sessions {
		if session.IsActive {
			active = append(active, session)
		}
	}
	return active, nil
}

func (c *Controller) recordFailure(ctx context.Context, userID id.UserID) {
	if c.lockouts == nil {
		return
	}
	if _, err := c.lockouts.RecordFailure(ctx, userID.String()); err != nil {
		c.logger.ErrorContext(ctx, "lockout record failed", "error", err, "user_id", userID)
	}
}

func (c *Controller) denied(ctx context.Context, userID id.UserID, reason string) {
	if c.metrics != nil {
		c.metrics.ActivationsDenied.WithLabelValues(reason).Inc()
	}
	c.logger.WarnContext(ctx, "break-glass activation denied",
		"user_id", userID, "reason", reason)
}
