package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/ritual-engine/internal/persistence"
)

// LearningPointRepository implements persistence.LearningPointRepository using SQLite.
type LearningPointRepository struct {
	pool *ConnectionPool
}

// NewLearningPointRepository creates a new SQLite learning point repository.
func NewLearningPointRepository(pool *ConnectionPool) *LearningPointRepository {
	return &LearningPointRepository{pool: pool}
}

// CreateLearningPoint stores a new learning point.
func (r *LearningPointRepository) CreateLearningPoint(ctx context.Context, point persistence.LearningPoint) error {
	if point.ID == "" || point.Day == "" || point.Type == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	point.CreatedAt = now
	point.UpdatedAt = now

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO learning_points (id, day, type, participant_id, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		point.ID,
		point.Day,
		point.Type,
		point.ParticipantID,
		point.Content,
		point.CreatedAt.Format(time.RFC3339),
		point.UpdatedAt.Format(time.RFC3339),
	)
	return mapSQLiteError(err)
}

// UpdateLearningPoint overwrites the content of an existing learning point.
func (r *LearningPointRepository) UpdateLearningPoint(ctx context.Context, point persistence.LearningPoint) error {
	if point.ID == "" {
		return persistence.ErrConstraintViolation
	}

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE learning_points
		SET content = ?, updated_at = ?
		WHERE id = ?
	`,
		point.Content,
		time.Now().UTC().Format(time.RFC3339),
		point.ID,
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

// GetLearningPoint retrieves a learning point by ID.
func (r *LearningPointRepository) GetLearningPoint(ctx context.Context, id string) (persistence.LearningPoint, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT id, day, type, participant_id, content, created_at, updated_at
		FROM learning_points
		WHERE id = ?
	`, id)
	return scanLearningPoint(row)
}

// ListLearningPoints returns the learning points for a session ordered by
// creation time.
func (r *LearningPointRepository) ListLearningPoints(ctx context.Context, day, sessionType string) ([]persistence.LearningPoint, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, day, type, participant_id, content, created_at, updated_at
		FROM learning_points
		WHERE day = ? AND type = ?
		ORDER BY created_at, id
	`, day, sessionType)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	points := make([]persistence.LearningPoint, 0)
	for rows.Next() {
		point, err := scanLearningPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, rows.Err()
}

// DeleteLearningPoint removes a learning point by ID.
func (r *LearningPointRepository) DeleteLearningPoint(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM learning_points WHERE id = ?`, id)
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

func scanLearningPoint(row rowScanner) (persistence.LearningPoint, error) {
	var point persistence.LearningPoint
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&point.ID,
		&point.Day,
		&point.Type,
		&point.ParticipantID,
		&point.Content,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.LearningPoint{}, mapSQLiteError(err)
	}

	if point.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.LearningPoint{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if point.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.LearningPoint{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return point, nil
}
