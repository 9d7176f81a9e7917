package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/ritual-engine/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Pool           *sqlite.ConnectionPool
	Sessions       *sqlite.SessionRepository
	Attendance     *sqlite.AttendanceRepository
	Participants   *sqlite.ParticipantRepository
	LearningPoints *sqlite.LearningPointRepository
	AuthSessions   *sqlite.AuthSessionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// also registers a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "rituals.db")

	pool, err := sqlite.NewConnectionPool("file:" + path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := pool.Migrate(context.Background()); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:           pool,
		Sessions:       sqlite.NewSessionRepository(pool),
		Attendance:     sqlite.NewAttendanceRepository(pool),
		Participants:   sqlite.NewParticipantRepository(pool),
		LearningPoints: sqlite.NewLearningPointRepository(pool),
		AuthSessions:   sqlite.NewAuthSessionRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
