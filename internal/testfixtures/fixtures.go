package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/ritual-engine/internal/application"
	"github.com/example/ritual-engine/internal/persistence"
)

var (
	participantCounter   uint64
	sessionCounter       uint64
	learningPointCounter uint64
	authSessionCounter   uint64
)

// referenceTime is a Monday morning, so fixture days fall inside a workweek
// unless a test overrides them.
var referenceTime = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ------------------------- Participant fixtures -------------------------

// ParticipantFixture represents a deterministic participant record that can be
// materialised for application or persistence tests.
type ParticipantFixture struct {
	ID           string
	Email        string
	DisplayName  string
	IsAdmin      bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ParticipantOption configures the generated participant fixture.
type ParticipantOption func(*ParticipantFixture)

// NewParticipantFixture returns a deterministic participant fixture with
// optional overrides.
func NewParticipantFixture(opts ...ParticipantOption) ParticipantFixture {
	idx := atomic.AddUint64(&participantCounter, 1)
	id := fmt.Sprintf("participant-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ParticipantFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("Participant %03d", idx),
		IsAdmin:      false,
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// ParticipantAsAdmin marks the fixture as an administrator.
func ParticipantAsAdmin() ParticipantOption {
	return func(f *ParticipantFixture) { f.IsAdmin = true }
}

// ParticipantWithID overrides the generated identifier.
func ParticipantWithID(id string) ParticipantOption {
	return func(f *ParticipantFixture) { f.ID = id }
}

// ParticipantWithEmail overrides the generated email address.
func ParticipantWithEmail(email string) ParticipantOption {
	return func(f *ParticipantFixture) { f.Email = email }
}

// AsApplication converts the fixture into the application model.
func (f ParticipantFixture) AsApplication() application.Participant {
	return application.Participant{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		IsAdmin:     f.IsAdmin,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// AsPersistence converts the fixture into the persistence model, including
// the password hash.
func (f ParticipantFixture) AsPersistence() persistence.Participant {
	return persistence.Participant{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		IsAdmin:      f.IsAdmin,
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// --------------------------- Session fixtures ---------------------------

// SessionFixture represents one day's occurrence of a ritual in a chosen
// lifecycle state.
type SessionFixture struct {
	Day         string
	Type        application.SessionType
	Status      application.SessionStatus
	ScheduledAt time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time
	Synced      bool
	CreatedBy   string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a scheduled standup on a unique future day.
// Options move it through the lifecycle or onto another day or ritual.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	day := referenceTime.AddDate(0, 0, int(idx))
	fixture := SessionFixture{
		Day:         day.Format(application.DayFormat),
		Type:        application.SessionTypeStandup,
		Status:      application.SessionScheduled,
		ScheduledAt: day,
		CreatedBy:   "participant-001",
		Version:     1,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// SessionOnDay pins the session to a specific civil day.
func SessionOnDay(day string) SessionOption {
	return func(f *SessionFixture) { f.Day = day }
}

// SessionOfType switches the ritual type.
func SessionOfType(sessionType application.SessionType) SessionOption {
	return func(f *SessionFixture) { f.Type = sessionType }
}

// SessionActive marks the fixture as started at its scheduled time.
func SessionActive() SessionOption {
	return func(f *SessionFixture) {
		f.Status = application.SessionActive
		started := f.ScheduledAt
		f.StartedAt = &started
	}
}

// SessionEnded marks the fixture as started and ended.
func SessionEnded() SessionOption {
	return func(f *SessionFixture) {
		f.Status = application.SessionEnded
		started := f.ScheduledAt
		ended := started.Add(30 * time.Minute)
		f.StartedAt = &started
		f.EndedAt = &ended
	}
}

// SessionSynced marks an ended fixture as exported.
func SessionSynced() SessionOption {
	return func(f *SessionFixture) { f.Synced = true }
}

// AsApplication converts the fixture into the application model.
func (f SessionFixture) AsApplication() application.Session {
	return application.Session{
		Day:         f.Day,
		Type:        f.Type,
		Status:      f.Status,
		ScheduledAt: f.ScheduledAt,
		StartedAt:   copyTime(f.StartedAt),
		EndedAt:     copyTime(f.EndedAt),
		Synced:      f.Synced,
		CreatedBy:   f.CreatedBy,
		Version:     f.Version,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// AsPersistence converts the fixture into the persistence model.
func (f SessionFixture) AsPersistence() persistence.Session {
	return persistence.Session{
		Day:         f.Day,
		Type:        string(f.Type),
		Status:      string(f.Status),
		ScheduledAt: f.ScheduledAt,
		StartedAt:   copyTime(f.StartedAt),
		EndedAt:     copyTime(f.EndedAt),
		Synced:      f.Synced,
		CreatedBy:   f.CreatedBy,
		Version:     f.Version,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// -------------------------- Attendance fixtures --------------------------

// AttendanceMarkFixture represents one committed attendance record.
type AttendanceMarkFixture struct {
	Day           string
	Type          application.SessionType
	ParticipantID string
	Status        application.AttendanceStatus
	Reason        string
	MarkedAt      time.Time
}

// AttendanceOption configures the generated attendance fixture.
type AttendanceOption func(*AttendanceMarkFixture)

// NewAttendanceMarkFixture returns a Present mark for the supplied
// participant on the supplied day.
func NewAttendanceMarkFixture(day, participantID string, opts ...AttendanceOption) AttendanceMarkFixture {
	fixture := AttendanceMarkFixture{
		Day:           day,
		Type:          application.SessionTypeStandup,
		ParticipantID: participantID,
		Status:        application.AttendancePresent,
		MarkedAt:      referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// AttendanceWithStatus overrides the mark's status and reason.
func AttendanceWithStatus(status application.AttendanceStatus, reason string) AttendanceOption {
	return func(f *AttendanceMarkFixture) {
		f.Status = status
		f.Reason = reason
	}
}

// AttendanceOfType switches the ritual type.
func AttendanceOfType(sessionType application.SessionType) AttendanceOption {
	return func(f *AttendanceMarkFixture) { f.Type = sessionType }
}

// AsApplication converts the fixture into the application model.
func (f AttendanceMarkFixture) AsApplication() application.AttendanceMark {
	return application.AttendanceMark{
		Day:           f.Day,
		Type:          f.Type,
		ParticipantID: f.ParticipantID,
		Status:        f.Status,
		Reason:        f.Reason,
		MarkedAt:      f.MarkedAt,
	}
}

// AsPersistence converts the fixture into the persistence model. The reason
// column is NULL unless the status carries one.
func (f AttendanceMarkFixture) AsPersistence() persistence.AttendanceMark {
	mark := persistence.AttendanceMark{
		Day:           f.Day,
		Type:          string(f.Type),
		ParticipantID: f.ParticipantID,
		Status:        string(f.Status),
		MarkedAt:      f.MarkedAt,
	}
	if f.Reason != "" {
		reason := f.Reason
		mark.Reason = &reason
	}
	return mark
}

// ------------------------ Learning point fixtures ------------------------

// LearningPointFixture represents a participant-authored note bound to one
// session.
type LearningPointFixture struct {
	ID            string
	Day           string
	Type          application.SessionType
	ParticipantID string
	Content       string
	Editable      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LearningPointOption configures the generated learning point fixture.
type LearningPointOption func(*LearningPointFixture)

// NewLearningPointFixture returns a deterministic learning point fixture with
// optional overrides.
func NewLearningPointFixture(day, participantID string, opts ...LearningPointOption) LearningPointFixture {
	idx := atomic.AddUint64(&learningPointCounter, 1)
	fixture := LearningPointFixture{
		ID:            fmt.Sprintf("point-%03d", idx),
		Day:           day,
		Type:          application.SessionTypeLearningHour,
		ParticipantID: participantID,
		Content:       fmt.Sprintf("learning point %03d", idx),
		Editable:      true,
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// LearningPointWithContent overrides the note body.
func LearningPointWithContent(content string) LearningPointOption {
	return func(f *LearningPointFixture) { f.Content = content }
}

// LearningPointLocked marks the fixture as belonging to an ended session.
func LearningPointLocked() LearningPointOption {
	return func(f *LearningPointFixture) { f.Editable = false }
}

// AsApplication converts the fixture into the application model.
func (f LearningPointFixture) AsApplication() application.LearningPoint {
	return application.LearningPoint{
		ID:            f.ID,
		Day:           f.Day,
		Type:          f.Type,
		ParticipantID: f.ParticipantID,
		Content:       f.Content,
		Editable:      f.Editable,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// AsPersistence converts the fixture into the persistence model.
func (f LearningPointFixture) AsPersistence() persistence.LearningPoint {
	return persistence.LearningPoint{
		ID:            f.ID,
		Day:           f.Day,
		Type:          string(f.Type),
		ParticipantID: f.ParticipantID,
		Content:       f.Content,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// ------------------------- Auth session fixtures -------------------------

// AuthSessionFixture represents an issued authentication token.
type AuthSessionFixture struct {
	ID            string
	ParticipantID string
	Token         string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	RevokedAt     *time.Time
}

// AuthSessionOption configures the generated auth session fixture.
type AuthSessionOption func(*AuthSessionFixture)

// NewAuthSessionFixture returns a live auth session for the supplied
// participant, expiring a day after the reference time.
func NewAuthSessionFixture(participantID string, opts ...AuthSessionOption) AuthSessionFixture {
	idx := atomic.AddUint64(&authSessionCounter, 1)
	fixture := AuthSessionFixture{
		ID:            fmt.Sprintf("auth-%03d", idx),
		ParticipantID: participantID,
		Token:         fmt.Sprintf("token-%03d", idx),
		ExpiresAt:     referenceTime.Add(24 * time.Hour),
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// AuthSessionExpired places the expiry before the reference time.
func AuthSessionExpired() AuthSessionOption {
	return func(f *AuthSessionFixture) { f.ExpiresAt = referenceTime.Add(-time.Hour) }
}

// AuthSessionRevoked marks the session as revoked at the reference time.
func AuthSessionRevoked() AuthSessionOption {
	return func(f *AuthSessionFixture) {
		revoked := referenceTime
		f.RevokedAt = &revoked
	}
}

// AsApplication converts the fixture into the application model.
func (f AuthSessionFixture) AsApplication() application.AuthSession {
	return application.AuthSession{
		ID:            f.ID,
		ParticipantID: f.ParticipantID,
		Token:         f.Token,
		ExpiresAt:     f.ExpiresAt,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
		RevokedAt:     copyTime(f.RevokedAt),
	}
}

// AsPersistence converts the fixture into the persistence model.
func (f AuthSessionFixture) AsPersistence() persistence.AuthSession {
	return persistence.AuthSession{
		ID:            f.ID,
		ParticipantID: f.ParticipantID,
		Token:         f.Token,
		ExpiresAt:     f.ExpiresAt,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
		RevokedAt:     copyTime(f.RevokedAt),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
