package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/ritual-engine/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool *ConnectionPool
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// CreateSession stores a new session record in its initial state.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.Day == "" || session.Type == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	session.Version = 1
	session.CreatedAt = now
	session.UpdatedAt = now

	query := `
		INSERT INTO sessions (day, type, status, scheduled_at, started_at, ended_at, synced, created_by, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.pool.db.ExecContext(ctx, query,
		session.Day,
		session.Type,
		session.Status,
		session.ScheduledAt.UTC().Format(time.RFC3339),
		nullableTime(session.StartedAt),
		nullableTime(session.EndedAt),
		boolToInt(session.Synced),
		session.CreatedBy,
		session.Version,
		session.CreatedAt.Format(time.RFC3339),
		session.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return persistence.Session{}, mapSQLiteError(err)
	}

	return session, nil
}

// GetSession retrieves a session by its (day, type) key.
func (r *SessionRepository) GetSession(ctx context.Context, day, sessionType string) (persistence.Session, error) {
	query := `
		SELECT day, type, status, scheduled_at, started_at, ended_at, synced, created_by, version, created_at, updated_at
		FROM sessions
		WHERE day = ? AND type = ?
	`
	row := r.pool.db.QueryRowContext(ctx, query, day, sessionType)
	return scanSession(row)
}

// UpdateSession applies an optimistic update keyed on the version the caller
// read. A concurrent writer that advanced the version first causes
// ErrVersionConflict.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.Day == "" || session.Type == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	readVersion := session.Version
	session.Version = readVersion + 1
	session.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE sessions
		SET status = ?, scheduled_at = ?, started_at = ?, ended_at = ?, synced = ?, version = ?, updated_at = ?
		WHERE day = ? AND type = ? AND version = ?
	`

	result, err := r.pool.db.ExecContext(ctx, query,
		session.Status,
		session.ScheduledAt.UTC().Format(time.RFC3339),
		nullableTime(session.StartedAt),
		nullableTime(session.EndedAt),
		boolToInt(session.Synced),
		session.Version,
		session.UpdatedAt.Format(time.RFC3339),
		session.Day,
		session.Type,
		readVersion,
	)
	if err != nil {
		return persistence.Session{}, mapSQLiteError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.Session{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Either the record is gone or another writer advanced the version.
		if _, getErr := r.GetSession(ctx, session.Day, session.Type); getErr != nil {
			return persistence.Session{}, getErr
		}
		return persistence.Session{}, persistence.ErrVersionConflict
	}

	return session, nil
}

// ListSessions returns sessions matching the filter ordered by day, type.
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	query := `
		SELECT day, type, status, scheduled_at, started_at, ended_at, synced, created_by, version, created_at, updated_at
		FROM sessions
	`
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 4)

	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.DayFrom != "" {
		conditions = append(conditions, "day >= ?")
		args = append(args, filter.DayFrom)
	}
	if filter.DayUntil != "" {
		conditions = append(conditions, "day <= ?")
		args = append(args, filter.DayUntil)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY day, type"

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	sessions := make([]persistence.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var session persistence.Session
	var scheduledAtStr, createdAtStr, updatedAtStr string
	var startedAt, endedAt sql.NullString
	var synced int

	err := row.Scan(
		&session.Day,
		&session.Type,
		&session.Status,
		&scheduledAtStr,
		&startedAt,
		&endedAt,
		&synced,
		&session.CreatedBy,
		&session.Version,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Session{}, mapSQLiteError(err)
	}

	session.Synced = synced != 0

	if session.ScheduledAt, err = time.Parse(time.RFC3339, scheduledAtStr); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse scheduled_at: %w", err)
	}
	if session.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if session.EndedAt, err = parseTimePtr(endedAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse ended_at: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return session, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTimePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
