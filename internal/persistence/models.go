package persistence

import "time"

// Session represents one occurrence of a recurring team ritual, keyed by
// calendar day and session type. Day is a civil date in "2006-01-02" form.
type Session struct {
	Day         string
	Type        string
	Status      string
	ScheduledAt time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time
	Synced      bool
	CreatedBy   string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AttendanceMark is the durable attendance record for one participant in one
// session. Reason is present only for excused absences.
type AttendanceMark struct {
	Day           string
	Type          string
	ParticipantID string
	Status        string
	Reason        *string
	MarkedAt      time.Time
}

// Participant represents a team member account in the ritual domain.
type Participant struct {
	ID           string
	Email        string
	DisplayName  string
	IsAdmin      bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LearningPoint is a participant-authored note tied to a day's session.
type LearningPoint struct {
	ID            string
	Day           string
	Type          string
	ParticipantID string
	Content       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AuthSession represents an authentication token persisted for a participant.
type AuthSession struct {
	ID            string
	ParticipantID string
	Token         string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	RevokedAt     *time.Time
}
