package breakglass

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "verdant/pkg/domain"
	"verdant/pkg/platform/sentinel"
)

// PostgresSessionStore persists sessions in PostgreSQL. A partial unique
// index on (user_id) WHERE is_active enforces the one-active-session rule at
// the database level; Execute takes a row lock so validation and mutation
// observe the same state.
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

const sessionColumns = `
	id, user_id, user_name, reason, authentication_method,
	ip_address, user_agent, browser, os, is_active, action_count,
	activated_at, deactivated_at, deactivated_by, deactivated_by_name, deactivation_note
`

func (s *PostgresSessionStore) Create(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO break_glass_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.db.ExecContext(ctx, query,
		session.ID.String(), session.UserID.String(), session.UserName,
		session.Reason, session.AuthenticationMethod,
		session.IPAddress, session.UserAgent, session.Browser, session.OS,
		session.IsActive, session.ActionCount,
		session.ActivatedAt, nullTime(session.DeactivatedAt),
		nullUserID(session.DeactivatedBy), session.DeactivatedByName, session.DeactivationNote,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create break-glass session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) FindByID(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM break_glass_sessions WHERE id = $1`
	return scanSession(s.db.QueryRowContext(ctx, query, sessionID.String()))
}

func (s *PostgresSessionStore) FindActiveByUser(ctx context.Context, userID id.UserID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM break_glass_sessions WHERE user_id = $1 AND is_active`
	return scanSession(s.db.QueryRowContext(ctx, query, userID.String()))
}

func (s *PostgresSessionStore) ListByUser(ctx context.Context, userID id.UserID) ([]*Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM break_glass_sessions
		WHERE user_id = $1
		ORDER BY activated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list break-glass sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *PostgresSessionStore) Execute(ctx context.Context, sessionID id.SessionID, validate func(*Session) error, mutate func(*Session)) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin break-glass update: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + sessionColumns + ` FROM break_glass_sessions WHERE id = $1 FOR UPDATE`
	session, err := scanSession(tx.QueryRowContext(ctx, query, sessionID.String()))
	if err != nil {
		return nil, err
	}
	if err := validate(session); err != nil {
		return nil, err
	}
	mutate(session)

	update := `
		UPDATE break_glass_sessions
		SET is_active = $2, action_count = $3,
		    deactivated_at = $4, deactivated_by = $5,
		    deactivated_by_name = $6, deactivation_note = $7
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		session.ID.String(), session.IsActive, session.ActionCount,
		nullTime(session.DeactivatedAt), nullUserID(session.DeactivatedBy),
		session.DeactivatedByName, session.DeactivationNote,
	); err != nil {
		return nil, fmt.Errorf("update break-glass session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit break-glass update: %w", err)
	}
	return session, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		session           Session
		sessionID, userID string
		deactivatedAt     sql.NullTime
		deactivatedBy     sql.NullString
	)
	err := row.Scan(
		&sessionID, &userID, &session.UserName,
		&session.Reason, &session.AuthenticationMethod,
		&session.IPAddress, &session.UserAgent, &session.Browser, &session.OS,
		&session.IsActive, &session.ActionCount,
		&session.ActivatedAt, &deactivatedAt,
		&deactivatedBy, &session.DeactivatedByName, &session.DeactivationNote,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan break-glass session: %w", err)
	}

	if session.ID, err = id.ParseSessionID(sessionID); err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	if session.UserID, err = id.ParseUserID(userID); err != nil {
		return nil, fmt.Errorf("parse session user id: %w", err)
	}
	if deactivatedAt.Valid {
		t := deactivatedAt.Time
		session.DeactivatedAt = &t
	}
	if deactivatedBy.Valid {
		by, err := id.ParseUserID(deactivatedBy.String)
		if err != nil {
			return nil, fmt.Errorf("parse deactivated-by id: %w", err)
		}
		session.DeactivatedBy = &by
	}
	return &session, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUserID(u *id.UserID) sql.NullString {
	if u == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: u.String(), Valid: true}
}
