package persistence

import (
	"context"
	"time"
)

// SessionFilter narrows session queries.
type SessionFilter struct {
	Type     string
	Status   string
	DayFrom  string
	DayUntil string
}

// SessionRepository stores ritual session lifecycle records.
//
// UpdateSession performs an optimistic update: the stored record must still
// carry the version the caller read, otherwise ErrVersionConflict is
// returned. On success the returned session carries the incremented version.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, day, sessionType string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
}

// AttendanceRepository stores committed attendance marks.
//
// SaveRoster replaces the entire roster for a session in a single atomic
// write: either every mark is durably recorded or none is. Re-running it for
// the same session overwrites the previous roster rather than appending.
type AttendanceRepository interface {
	SaveRoster(ctx context.Context, day, sessionType string, marks []AttendanceMark) error
	ListRoster(ctx context.Context, day, sessionType string) ([]AttendanceMark, error)
	ListParticipantHistory(ctx context.Context, participantID, sessionType string) ([]AttendanceMark, error)
}

// ParticipantRepository exposes CRUD operations for participants.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, participant Participant) error
	UpdateParticipant(ctx context.Context, participant Participant) error
	GetParticipant(ctx context.Context, id string) (Participant, error)
	GetParticipantByEmail(ctx context.Context, email string) (Participant, error)
	ListParticipants(ctx context.Context) ([]Participant, error)
	DeleteParticipant(ctx context.Context, id string) error
}

// LearningPointRepository stores participant-authored learning points.
type LearningPointRepository interface {
	CreateLearningPoint(ctx context.Context, point LearningPoint) error
	UpdateLearningPoint(ctx context.Context, point LearningPoint) error
	GetLearningPoint(ctx context.Context, id string) (LearningPoint, error)
	ListLearningPoints(ctx context.Context, day, sessionType string) ([]LearningPoint, error)
	DeleteLearningPoint(ctx context.Context, id string) error
}

// AuthSessionRepository stores authentication token state.
type AuthSessionRepository interface {
	CreateAuthSession(ctx context.Context, session AuthSession) (AuthSession, error)
	GetAuthSession(ctx context.Context, token string) (AuthSession, error)
	RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) (AuthSession, error)
	DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error
}
