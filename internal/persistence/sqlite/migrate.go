package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migrationStep pairs a monotonically increasing version with the SQL that
// brings the schema to it. Steps are applied in order inside one transaction
// each and recorded in schema_migrations so Migrate stays idempotent.
type migrationStep struct {
	version     int
	description string
	statements  []string
}

var migrations = []migrationStep{
	{
		version:     1,
		description: "participants directory",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS participants (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE COLLATE NOCASE,
				display_name TEXT NOT NULL,
				is_admin INTEGER NOT NULL DEFAULT 0,
				password_hash TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
	{
		version:     2,
		description: "ritual sessions and attendance",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				day TEXT NOT NULL,
				type TEXT NOT NULL,
				status TEXT NOT NULL CHECK (status IN ('scheduled', 'active', 'ended')),
				scheduled_at TEXT NOT NULL,
				started_at TEXT,
				ended_at TEXT,
				synced INTEGER NOT NULL DEFAULT 0,
				created_by TEXT NOT NULL DEFAULT '',
				version INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				PRIMARY KEY (day, type)
			)`,
			`CREATE TABLE IF NOT EXISTS attendance_marks (
				day TEXT NOT NULL,
				type TEXT NOT NULL,
				participant_id TEXT NOT NULL,
				status TEXT NOT NULL,
				reason TEXT,
				marked_at TEXT NOT NULL,
				PRIMARY KEY (day, type, participant_id),
				FOREIGN KEY (day, type) REFERENCES sessions (day, type)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_attendance_participant
				ON attendance_marks (participant_id, type, day)`,
		},
	},
	{
		version:     3,
		description: "learning points",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS learning_points (
				id TEXT PRIMARY KEY,
				day TEXT NOT NULL,
				type TEXT NOT NULL,
				participant_id TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				FOREIGN KEY (day, type) REFERENCES sessions (day, type)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_learning_points_session
				ON learning_points (day, type)`,
		},
	},
	{
		version:     4,
		description: "auth sessions",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS auth_sessions (
				id TEXT PRIMARY KEY,
				participant_id TEXT NOT NULL,
				token TEXT NOT NULL UNIQUE,
				expires_at TEXT NOT NULL,
				revoked_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
}

// Migrate brings the database schema up to the latest version. It is safe to
// call on every startup.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	if _, err := cp.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to initialise schema_migrations: %w", err)
	}

	applied, err := cp.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, step := range migrations {
		if _, ok := applied[step.version]; ok {
			continue
		}
		if err := cp.applyStep(ctx, step); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", step.version, step.description, err)
		}
	}

	return nil
}

func (cp *ConnectionPool) appliedVersions(ctx context.Context) (map[int]struct{}, error) {
	rows, err := cp.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]struct{})
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan schema_migrations row: %w", err)
		}
		applied[version] = struct{}{}
	}
	return applied, rows.Err()
}

func (cp *ConnectionPool) applyStep(ctx context.Context, step migrationStep) error {
	return cp.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, statement := range step.statements {
			if _, err := tx.ExecContext(ctx, statement); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
			step.version, step.description, time.Now().UTC().Format(time.RFC3339),
		)
		return err
	})
}
