package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/ritual-engine/internal/persistence"
)

// ParticipantRepository implements persistence.ParticipantRepository using SQLite.
type ParticipantRepository struct {
	pool *ConnectionPool
}

// NewParticipantRepository creates a new SQLite participant repository.
func NewParticipantRepository(pool *ConnectionPool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// CreateParticipant stores a new participant account.
func (r *ParticipantRepository) CreateParticipant(ctx context.Context, participant persistence.Participant) error {
	if participant.ID == "" || strings.TrimSpace(participant.Email) == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	participant.CreatedAt = now
	participant.UpdatedAt = now

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO participants (id, email, display_name, is_admin, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		participant.ID,
		strings.TrimSpace(participant.Email),
		participant.DisplayName,
		boolToInt(participant.IsAdmin),
		participant.PasswordHash,
		participant.CreatedAt.Format(time.RFC3339),
		participant.UpdatedAt.Format(time.RFC3339),
	)
	return mapSQLiteError(err)
}

// UpdateParticipant updates an existing participant account.
func (r *ParticipantRepository) UpdateParticipant(ctx context.Context, participant persistence.Participant) error {
	if participant.ID == "" {
		return persistence.ErrConstraintViolation
	}

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE participants
		SET email = ?, display_name = ?, is_admin = ?, password_hash = ?, updated_at = ?
		WHERE id = ?
	`,
		strings.TrimSpace(participant.Email),
		participant.DisplayName,
		boolToInt(participant.IsAdmin),
		participant.PasswordHash,
		time.Now().UTC().Format(time.RFC3339),
		participant.ID,
	)
	if err != nil {
		return mapSQLiteError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetParticipant retrieves a participant by ID.
func (r *ParticipantRepository) GetParticipant(ctx context.Context, id string) (persistence.Participant, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, is_admin, password_hash, created_at, updated_at
		FROM participants
		WHERE id = ?
	`, id)
	return scanParticipant(row)
}

// GetParticipantByEmail retrieves a participant by email address.
func (r *ParticipantRepository) GetParticipantByEmail(ctx context.Context, email string) (persistence.Participant, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, is_admin, password_hash, created_at, updated_at
		FROM participants
		WHERE email = ? COLLATE NOCASE
	`, strings.TrimSpace(email))
	return scanParticipant(row)
}

// ListParticipants returns all participants ordered by display name.
func (r *ParticipantRepository) ListParticipants(ctx context.Context) ([]persistence.Participant, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, email, display_name, is_admin, password_hash, created_at, updated_at
		FROM participants
		ORDER BY display_name, id
	`)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	participants := make([]persistence.Participant, 0)
	for rows.Next() {
		participant, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}
	return participants, rows.Err()
}

// DeleteParticipant removes a participant by ID.
func (r *ParticipantRepository) DeleteParticipant(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM participants WHERE id = ?`, id)
	if err != nil {
		return mapSQLiteError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanParticipant(row rowScanner) (persistence.Participant, error) {
	var participant persistence.Participant
	var isAdmin int
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&participant.ID,
		&participant.Email,
		&participant.DisplayName,
		&isAdmin,
		&participant.PasswordHash,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Participant{}, mapSQLiteError(err)
	}

	participant.IsAdmin = isAdmin != 0

	if participant.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Participant{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if participant.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Participant{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return participant, nil
}
