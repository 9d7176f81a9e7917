package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/ritual-engine/internal/application"
	"github.com/example/ritual-engine/internal/persistence"
	"github.com/example/ritual-engine/internal/persistence/sqlite"
)

func newTestPool(t *testing.T) *sqlite.ConnectionPool {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rituals.db")
	pool, err := sqlite.NewConnectionPool("file:" + path)
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return pool
}

func TestSessionRepositoryAdapterRoundTrip(t *testing.T) {
	pool := newTestPool(t)
	adapter := newSessionRepositoryAdapter(sqlite.NewSessionRepository(pool))
	ctx := context.Background()

	scheduledAt := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	created, err := adapter.CreateSession(ctx, application.Session{
		Day:         "2026-03-02",
		Type:        application.SessionTypeStandup,
		Status:      application.SessionScheduled,
		ScheduledAt: scheduledAt,
		CreatedBy:   "admin-1",
		CreatedAt:   scheduledAt,
		UpdatedAt:   scheduledAt,
	})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if created.Version == 0 {
		t.Fatal("expected a version on the created session")
	}

	fetched, err := adapter.GetSession(ctx, "2026-03-02", application.SessionTypeStandup)
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if fetched.Type != application.SessionTypeStandup || fetched.Status != application.SessionScheduled {
		t.Fatalf("unexpected session: %+v", fetched)
	}

	started := scheduledAt.Add(time.Minute)
	fetched.Status = application.SessionActive
	fetched.StartedAt = &started
	updated, err := adapter.UpdateSession(ctx, fetched)
	if err != nil {
		t.Fatalf("UpdateSession returned error: %v", err)
	}
	if updated.Status != application.SessionActive || updated.StartedAt == nil {
		t.Fatalf("unexpected updated session: %+v", updated)
	}
	if updated.Version <= fetched.Version {
		t.Fatalf("expected version to advance past %d, got %d", fetched.Version, updated.Version)
	}

	listed, err := adapter.ListSessions(ctx, application.SessionListFilter{Status: application.SessionActive})
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	if len(listed) != 1 || listed[0].Day != "2026-03-02" {
		t.Fatalf("unexpected listing: %+v", listed)
	}
}

func TestParticipantRepositoryAdapterBridgesCreate(t *testing.T) {
	pool := newTestPool(t)
	adapter := newParticipantRepositoryAdapter(sqlite.NewParticipantRepository(pool))
	ctx := context.Background()

	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	created, err := adapter.CreateParticipant(ctx, application.Participant{
		ID:          "p-1",
		Email:       "dev@example.com",
		DisplayName: "Dev One",
		CreatedAt:   now,
		UpdatedAt:   now,
	}, "hash-value")
	if err != nil {
		t.Fatalf("CreateParticipant returned error: %v", err)
	}
	if created.ID != "p-1" || created.Email != "dev@example.com" {
		t.Fatalf("unexpected participant: %+v", created)
	}

	hash, err := adapter.GetParticipantPasswordHash(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetParticipantPasswordHash returned error: %v", err)
	}
	if hash != "hash-value" {
		t.Fatalf("expected stored hash, got %q", hash)
	}

	creds := newCredentialStoreAdapter(sqlite.NewParticipantRepository(pool))
	stored, err := creds.GetParticipantCredentialsByEmail(ctx, "dev@example.com")
	if err != nil {
		t.Fatalf("GetParticipantCredentialsByEmail returned error: %v", err)
	}
	if stored.PasswordHash != "hash-value" || stored.Participant.ID != "p-1" {
		t.Fatalf("unexpected credentials: %+v", stored)
	}
}

func TestAttendanceMarkConversionPreservesReason(t *testing.T) {
	mark := application.AttendanceMark{
		Day:           "2026-03-02",
		Type:          application.SessionTypeStandup,
		ParticipantID: "p-1",
		Status:        application.AttendanceNotAvailable,
		Reason:        "client visit",
		MarkedAt:      time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
	}

	record := toPersistenceMark(mark)
	if record.Reason == nil || *record.Reason != "client visit" {
		t.Fatalf("expected reason pointer, got %+v", record.Reason)
	}

	back := toApplicationMarks([]persistence.AttendanceMark{record})
	if len(back) != 1 || back[0].Reason != "client visit" {
		t.Fatalf("unexpected round trip: %+v", back)
	}

	present := toPersistenceMark(application.AttendanceMark{Status: application.AttendancePresent})
	if present.Reason != nil {
		t.Fatal("expected NULL reason for Present mark")
	}
}

func TestMemoryRepositoriesServeAdapters(t *testing.T) {
	repos := newMemoryRepositories()
	ctx := context.Background()

	sessions := newSessionRepositoryAdapter(repos.sessions)
	scheduledAt := time.Date(2026, time.March, 3, 9, 30, 0, 0, time.UTC)
	created, err := sessions.CreateSession(ctx, application.Session{
		Day:         "2026-03-03",
		Type:        application.SessionTypeStandup,
		Status:      application.SessionScheduled,
		ScheduledAt: scheduledAt,
		CreatedBy:   "admin-1",
	})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if created.Version == 0 {
		t.Fatal("expected a version on the created session")
	}

	attendance := newAttendanceRepositoryAdapter(repos.attendance)
	marks := []application.AttendanceMark{
		{Day: "2026-03-03", Type: application.SessionTypeStandup, ParticipantID: "p-1", Status: application.AttendancePresent, MarkedAt: scheduledAt},
		{Day: "2026-03-03", Type: application.SessionTypeStandup, ParticipantID: "p-2", Status: application.AttendanceNotAvailable, Reason: "通院のため", MarkedAt: scheduledAt},
	}
	if err := attendance.SaveRoster(ctx, "2026-03-03", application.SessionTypeStandup, marks); err != nil {
		t.Fatalf("SaveRoster returned error: %v", err)
	}

	roster, err := attendance.ListRoster(ctx, "2026-03-03", application.SessionTypeStandup)
	if err != nil {
		t.Fatalf("ListRoster returned error: %v", err)
	}
	if len(roster) != 2 || roster[1].Reason != "通院のため" {
		t.Fatalf("unexpected roster: %+v", roster)
	}

	participants := newParticipantRepositoryAdapter(repos.participants)
	if _, err := participants.CreateParticipant(ctx, application.Participant{
		ID:          "p-1",
		Email:       "dev@example.com",
		DisplayName: "Dev One",
	}, "hash-value"); err != nil {
		t.Fatalf("CreateParticipant returned error: %v", err)
	}
	hash, err := participants.GetParticipantPasswordHash(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetParticipantPasswordHash returned error: %v", err)
	}
	if hash != "hash-value" {
		t.Fatalf("expected stored hash, got %q", hash)
	}
}

func TestDeriveSessionTokenBoundToSecret(t *testing.T) {
	nonce := []byte("0123456789abcdef0123456789abcdef")

	first := deriveSessionToken([]byte("secret-a"), nonce)
	again := deriveSessionToken([]byte("secret-a"), nonce)
	other := deriveSessionToken([]byte("secret-b"), nonce)

	if first != again {
		t.Fatal("expected derivation to be deterministic for equal inputs")
	}
	if first == other {
		t.Fatal("expected a different secret to change the token")
	}
	if len(first) != 64 {
		t.Fatalf("expected a 64 character hex token, got %d", len(first))
	}

	generate := newSessionTokenGenerator("secret-a")
	if generate() == generate() {
		t.Fatal("expected fresh nonces to produce distinct tokens")
	}
}
