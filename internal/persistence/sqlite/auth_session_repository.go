package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/ritual-engine/internal/persistence"
)

// AuthSessionRepository implements persistence.AuthSessionRepository using SQLite.
type AuthSessionRepository struct {
	pool *ConnectionPool
}

// NewAuthSessionRepository creates a new SQLite auth session repository.
func NewAuthSessionRepository(pool *ConnectionPool) *AuthSessionRepository {
	return &AuthSessionRepository{pool: pool}
}

// CreateAuthSession stores a new token for a participant.
func (r *AuthSessionRepository) CreateAuthSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	if session.ID == "" || session.ParticipantID == "" || strings.TrimSpace(session.Token) == "" {
		return persistence.AuthSession{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, participant_id, token, expires_at, revoked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		session.ID,
		session.ParticipantID,
		session.Token,
		session.ExpiresAt.UTC().Format(time.RFC3339),
		nullableTime(session.RevokedAt),
		session.CreatedAt.Format(time.RFC3339),
		session.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return persistence.AuthSession{}, mapSQLiteError(err)
	}

	return session, nil
}

// GetAuthSession retrieves a token record by its token value.
func (r *AuthSessionRepository) GetAuthSession(ctx context.Context, token string) (persistence.AuthSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx, `
		SELECT id, participant_id, token, expires_at, revoked_at, created_at, updated_at
		FROM auth_sessions
		WHERE token = ?
	`, token)
	return scanAuthSession(row)
}

// RevokeAuthSession marks a token as revoked. Revoking an already-revoked
// token keeps the original revocation time.
func (r *AuthSessionRepository) RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) (persistence.AuthSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}

	var revoked persistence.AuthSession
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, participant_id, token, expires_at, revoked_at, created_at, updated_at
			FROM auth_sessions
			WHERE token = ?
		`, token)

		current, err := scanAuthSession(row)
		if err != nil {
			return err
		}

		if current.RevokedAt != nil {
			revoked = current
			return nil
		}

		stamp := revokedAt.UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE auth_sessions SET revoked_at = ?, updated_at = ? WHERE token = ?
		`,
			stamp.Format(time.RFC3339),
			stamp.Format(time.RFC3339),
			token,
		); err != nil {
			return mapSQLiteError(err)
		}

		current.RevokedAt = &stamp
		current.UpdatedAt = stamp
		revoked = current
		return nil
	})
	if err != nil {
		return persistence.AuthSession{}, err
	}
	return revoked, nil
}

// DeleteExpiredAuthSessions removes tokens that expired before the reference time.
func (r *AuthSessionRepository) DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error {
	_, err := r.pool.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE expires_at < ?`,
		reference.UTC().Format(time.RFC3339),
	)
	return mapSQLiteError(err)
}

func scanAuthSession(row rowScanner) (persistence.AuthSession, error) {
	var session persistence.AuthSession
	var expiresAtStr, createdAtStr, updatedAtStr string
	var revokedAt sql.NullString

	err := row.Scan(
		&session.ID,
		&session.ParticipantID,
		&session.Token,
		&expiresAtStr,
		&revokedAt,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.AuthSession{}, mapSQLiteError(err)
	}

	if session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr); err != nil {
		return persistence.AuthSession{}, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	if session.RevokedAt, err = parseTimePtr(revokedAt); err != nil {
		return persistence.AuthSession{}, fmt.Errorf("failed to parse revoked_at: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.AuthSession{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.AuthSession{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return session, nil
}
