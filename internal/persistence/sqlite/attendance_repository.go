package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/ritual-engine/internal/persistence"
)

// AttendanceRepository implements persistence.AttendanceRepository using SQLite.
type AttendanceRepository struct {
	pool *ConnectionPool
}

// NewAttendanceRepository creates a new SQLite attendance repository.
func NewAttendanceRepository(pool *ConnectionPool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// SaveRoster replaces the committed roster for a session in one transaction.
// All marks are written or none are, and a retry after a failure produces the
// same final state rather than appending duplicates.
func (r *AttendanceRepository) SaveRoster(ctx context.Context, day, sessionType string, marks []persistence.AttendanceMark) error {
	if day == "" || sessionType == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM attendance_marks WHERE day = ? AND type = ?`,
			day, sessionType,
		); err != nil {
			return mapSQLiteError(err)
		}

		for _, mark := range marks {
			if mark.ParticipantID == "" {
				return persistence.ErrConstraintViolation
			}
			var reason sql.NullString
			if mark.Reason != nil {
				reason = sql.NullString{String: *mark.Reason, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO attendance_marks (day, type, participant_id, status, reason, marked_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`,
				day,
				sessionType,
				mark.ParticipantID,
				mark.Status,
				reason,
				mark.MarkedAt.UTC().Format(time.RFC3339),
			); err != nil {
				return mapSQLiteError(err)
			}
		}

		return nil
	})
}

// ListRoster returns the committed marks for a session ordered by participant.
func (r *AttendanceRepository) ListRoster(ctx context.Context, day, sessionType string) ([]persistence.AttendanceMark, error) {
	query := `
		SELECT day, type, participant_id, status, reason, marked_at
		FROM attendance_marks
		WHERE day = ? AND type = ?
		ORDER BY participant_id
	`
	return r.queryMarks(ctx, query, day, sessionType)
}

// ListParticipantHistory returns every committed mark for a participant and
// session type ordered by day descending.
func (r *AttendanceRepository) ListParticipantHistory(ctx context.Context, participantID, sessionType string) ([]persistence.AttendanceMark, error) {
	query := `
		SELECT day, type, participant_id, status, reason, marked_at
		FROM attendance_marks
		WHERE participant_id = ? AND type = ?
		ORDER BY day DESC
	`
	return r.queryMarks(ctx, query, participantID, sessionType)
}

func (r *AttendanceRepository) queryMarks(ctx context.Context, query string, args ...any) ([]persistence.AttendanceMark, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	marks := make([]persistence.AttendanceMark, 0)
	for rows.Next() {
		var mark persistence.AttendanceMark
		var reason sql.NullString
		var markedAtStr string

		if err := rows.Scan(
			&mark.Day,
			&mark.Type,
			&mark.ParticipantID,
			&mark.Status,
			&reason,
			&markedAtStr,
		); err != nil {
			return nil, mapSQLiteError(err)
		}

		if reason.Valid {
			value := reason.String
			mark.Reason = &value
		}
		if mark.MarkedAt, err = time.Parse(time.RFC3339, markedAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse marked_at: %w", err)
		}

		marks = append(marks, mark)
	}
	return marks, rows.Err()
}
