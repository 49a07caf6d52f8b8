package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	id "verdant/pkg/domain"
)

// PostgresStore persists audit entries in PostgreSQL. Used as the durable
// ledger behind the in-process one; the schema mirrors Entry with field
// changes JSON-encoded.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	var sessionID sql.NullString
	if entry.BreakGlassSessionID != nil {
		sessionID = sql.NullString{String: entry.BreakGlassSessionID.String(), Valid: true}
	}

	query := `
		INSERT INTO audit_entries (
			id, seq, ts, action, entity_type, entity_id,
			user_id, user_name, change_note, changes,
			is_break_glass, break_glass_session_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID, entry.Seq, entry.Timestamp, string(entry.Action),
		entry.EntityType, entry.EntityID,
		entry.UserID.String(), entry.UserName, entry.ChangeNote, changes,
		entry.IsBreakGlassAction, sessionID,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, seq, ts, action, entity_type, entity_id,
		       user_id, user_name, change_note, changes,
		       is_break_glass, break_glass_session_id
		FROM audit_entries
		WHERE 1=1
	`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.EntityType != "" {
		query += " AND entity_type = " + arg(filter.EntityType)
	}
	if filter.EntityID != "" {
		query += " AND entity_id = " + arg(filter.EntityID)
	}
	if filter.UserID != nil {
		query += " AND user_id = " + arg(filter.UserID.String())
	}
	if filter.Action != "" {
		query += " AND action = " + arg(string(filter.Action))
	}
	if filter.Start != nil {
		query += " AND ts >= " + arg(*filter.Start)
	}
	if filter.End != nil {
		query += " AND ts <= " + arg(*filter.End)
	}
	if filter.BreakGlassOnly {
		query += " AND is_break_glass"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			action    string
			userID    string
			changes   []byte
			sessionID sql.NullString
		)
		if err := rows.Scan(
			&e.ID, &e.Seq, &e.Timestamp, &action, &e.EntityType, &e.EntityID,
			&userID, &e.UserName, &e.ChangeNote, &changes,
			&e.IsBreakGlassAction, &sessionID,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = Action(action)
		if uid, err := id.ParseUserID(userID); err == nil {
			e.UserID = uid
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, fmt.Errorf("unmarshal changes: %w", err)
			}
		}
		if sessionID.Valid {
			if sid, err := id.ParseSessionID(sessionID.String); err == nil {
				e.BreakGlassSessionID = &sid
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
