package application

import (
	"fmt"
	"time"
)

// DayFormat is the civil-date layout used for session keys.
const DayFormat = "2006-01-02"

// SessionType identifies which recurring ritual a session belongs to.
type SessionType string

const (
	// SessionTypeStandup is the daily standup ritual.
	SessionTypeStandup SessionType = "standup"
	// SessionTypeLearningHour is the daily learning-hour ritual.
	SessionTypeLearningHour SessionType = "learning_hour"
)

// Valid reports whether the session type is one of the known rituals.
func (t SessionType) Valid() bool {
	return t == SessionTypeStandup || t == SessionTypeLearningHour
}

// SessionStatus is the lifecycle state of a session. It only ever advances
// scheduled -> active -> ended.
type SessionStatus string

const (
	// SessionScheduled is the initial state of a created session.
	SessionScheduled SessionStatus = "scheduled"
	// SessionActive is the state during which attendance edits are accepted.
	SessionActive SessionStatus = "active"
	// SessionEnded is the terminal state; the roster is committed and
	// session artifacts are locked.
	SessionEnded SessionStatus = "ended"
)

// AttendanceStatus is the attendance outcome recorded for a participant.
type AttendanceStatus string

const (
	// AttendancePresent indicates the participant attended.
	AttendancePresent AttendanceStatus = "Present"
	// AttendanceAbsent indicates an unexcused absence.
	AttendanceAbsent AttendanceStatus = "Absent"
	// AttendanceMissed is the default for participants with no explicit mark.
	AttendanceMissed AttendanceStatus = "Missed"
	// AttendanceNotAvailable indicates an excused absence; it requires a reason.
	AttendanceNotAvailable AttendanceStatus = "NotAvailable"
)

// Valid reports whether the attendance status is one of the known outcomes.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceMissed, AttendanceNotAvailable:
		return true
	}
	return false
}

// SessionKey uniquely identifies one day's occurrence of a ritual.
type SessionKey struct {
	Day  string
	Type SessionType
}

// String renders the key for logs and lock identifiers.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s", k.Day, k.Type)
}

// NormalizeDay validates a civil date string and returns it in canonical form.
func NormalizeDay(day string) (string, error) {
	parsed, err := time.Parse(DayFormat, day)
	if err != nil {
		return "", err
	}
	return parsed.Format(DayFormat), nil
}

// DayOf converts an instant to the civil date it falls on in its location.
func DayOf(t time.Time) string {
	return t.Format(DayFormat)
}

// Principal represents the authenticated participant invoking a service method.
type Principal struct {
	ParticipantID string
	IsAdmin       bool
}

// Session represents a ritual session exposed by the application services.
type Session struct {
	Day         string
	Type        SessionType
	Status      SessionStatus
	ScheduledAt time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time
	Synced      bool
	CreatedBy   string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key returns the session's (day, type) key.
func (s Session) Key() SessionKey {
	return SessionKey{Day: s.Day, Type: s.Type}
}

// AttendanceMark is a committed attendance record for one participant.
type AttendanceMark struct {
	Day           string
	Type          SessionType
	ParticipantID string
	Status        AttendanceStatus
	Reason        string
	MarkedAt      time.Time
}

// SessionEvent notifies subscribers that a session changed state.
type SessionEvent struct {
	Day    string
	Type   SessionType
	Status SessionStatus
}

// ScheduleSessionParams wraps the data required to schedule a session.
type ScheduleSessionParams struct {
	Principal Principal
	Day       string
	Type      SessionType
	At        time.Time
}

// RescheduleSessionParams wraps the data required to move a scheduled session.
type RescheduleSessionParams struct {
	Principal Principal
	Day       string
	Type      SessionType
	At        time.Time
}

// TransitionParams identifies the session a transition applies to.
type TransitionParams struct {
	Principal Principal
	Day       string
	Type      SessionType
}

// TentativeStatusParams wraps a working-set attendance edit.
type TentativeStatusParams struct {
	Principal     Principal
	Day           string
	Type          SessionType
	ParticipantID string
	Status        AttendanceStatus
	Reason        string
}

// ComputeStreakParams wraps a streak query.
type ComputeStreakParams struct {
	ParticipantID string
	Type          SessionType
	Today         time.Time
}

// ParticipantInput captures caller provided participant attributes.
type ParticipantInput struct {
	Email       string
	DisplayName string
	IsAdmin     bool
	Password    string
}

// Participant represents a team member account exposed by the services.
type Participant struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateParticipantParams wraps the data required to create a participant.
type CreateParticipantParams struct {
	Principal Principal
	Input     ParticipantInput
}

// UpdateParticipantParams wraps the data required to update a participant.
type UpdateParticipantParams struct {
	Principal     Principal
	ParticipantID string
	Input         ParticipantInput
}

// LearningPointInput captures caller provided learning point fields.
type LearningPointInput struct {
	Day     string
	Type    SessionType
	Content string
}

// LearningPoint is a participant-authored note tied to a day's session.
type LearningPoint struct {
	ID            string
	Day           string
	Type          SessionType
	ParticipantID string
	Content       string
	Editable      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Key returns the owning session's key.
func (p LearningPoint) Key() SessionKey {
	return SessionKey{Day: p.Day, Type: p.Type}
}

// CreateLearningPointParams wraps the data required to record a learning point.
type CreateLearningPointParams struct {
	Principal Principal
	Input     LearningPointInput
}

// UpdateLearningPointParams wraps the data required to edit a learning point.
type UpdateLearningPointParams struct {
	Principal Principal
	PointID   string
	Content   string
}

// ParticipantCredentials models the authentication attributes for a participant.
type ParticipantCredentials struct {
	Participant  Participant
	PasswordHash string
}

// AuthSession represents an authenticated session issued to a participant.
type AuthSession struct {
	ID            string
	ParticipantID string
	Token         string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	RevokedAt     *time.Time
}

// AuthenticateParams captures the data required to authenticate a participant.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication.
type AuthenticateResult struct {
	Participant Participant
	Session     AuthSession
}
