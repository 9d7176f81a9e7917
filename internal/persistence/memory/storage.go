// Package memory provides a map-backed implementation of the persistence
// repositories for tests and the dev profile. Semantics mirror the SQLite
// implementation, including roster atomicity and optimistic session versions.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/ritual-engine/internal/persistence"
)

type sessionKey struct {
	day         string
	sessionType string
}

type markKey struct {
	day           string
	sessionType   string
	participantID string
}

// Storage holds every repository's records behind one mutex.
type Storage struct {
	mu             sync.RWMutex
	sessions       map[sessionKey]persistence.Session
	marks          map[markKey]persistence.AttendanceMark
	participants   map[string]persistence.Participant
	learningPoints map[string]persistence.LearningPoint
	authSessions   map[string]persistence.AuthSession

	// failNextSaveRoster simulates persistence being unavailable for exactly
	// one SaveRoster call; used by commit failure tests.
	failNextSaveRoster error
}

// NewStorage returns an empty Storage.
func NewStorage() *Storage {
	return &Storage{
		sessions:       make(map[sessionKey]persistence.Session),
		marks:          make(map[markKey]persistence.AttendanceMark),
		participants:   make(map[string]persistence.Participant),
		learningPoints: make(map[string]persistence.LearningPoint),
		authSessions:   make(map[string]persistence.AuthSession),
	}
}

// FailNextSaveRoster makes the next SaveRoster call return err without
// writing anything.
func (s *Storage) FailNextSaveRoster(err error) {
	s.mu.Lock()
	s.failNextSaveRoster = err
	s.mu.Unlock()
}

// --- SessionRepository implementation ---

// CreateSession stores a new session record.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.Day == "" || session.Type == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	key := sessionKey{day: session.Day, sessionType: session.Type}
	if _, ok := s.sessions[key]; ok {
		return persistence.Session{}, persistence.ErrDuplicate
	}

	now := time.Now().UTC()
	session.Version = 1
	session.CreatedAt = now
	session.UpdatedAt = now

	s.sessions[key] = cloneSession(session)
	return cloneSession(session), nil
}

// GetSession retrieves a session by its (day, type) key.
func (s *Storage) GetSession(ctx context.Context, day, sessionType string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionKey{day: day, sessionType: sessionType}]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// UpdateSession applies an optimistic update keyed on Version.
func (s *Storage) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{day: session.Day, sessionType: session.Type}
	existing, ok := s.sessions[key]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	if existing.Version != session.Version {
		return persistence.Session{}, persistence.ErrVersionConflict
	}

	session.Version = existing.Version + 1
	session.CreatedAt = existing.CreatedAt
	session.CreatedBy = existing.CreatedBy
	session.UpdatedAt = time.Now().UTC()

	s.sessions[key] = cloneSession(session)
	return cloneSession(session), nil
}

// ListSessions returns sessions matching the filter ordered by day then type.
func (s *Storage) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]persistence.Session, 0)
	for _, session := range s.sessions {
		if filter.Type != "" && session.Type != filter.Type {
			continue
		}
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		if filter.DayFrom != "" && session.Day < filter.DayFrom {
			continue
		}
		if filter.DayUntil != "" && session.Day > filter.DayUntil {
			continue
		}
		sessions = append(sessions, cloneSession(session))
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Day == sessions[j].Day {
			return sessions[i].Type < sessions[j].Type
		}
		return sessions[i].Day < sessions[j].Day
	})

	return sessions, nil
}

// --- AttendanceRepository implementation ---

// SaveRoster atomically replaces the roster for a session.
func (s *Storage) SaveRoster(ctx context.Context, day, sessionType string, marks []persistence.AttendanceMark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failNextSaveRoster; err != nil {
		s.failNextSaveRoster = nil
		return err
	}

	if day == "" || sessionType == "" {
		return persistence.ErrConstraintViolation
	}
	for _, mark := range marks {
		if mark.ParticipantID == "" {
			return persistence.ErrConstraintViolation
		}
	}

	for key := range s.marks {
		if key.day == day && key.sessionType == sessionType {
			delete(s.marks, key)
		}
	}
	for _, mark := range marks {
		mark.Day = day
		mark.Type = sessionType
		s.marks[markKey{day: day, sessionType: sessionType, participantID: mark.ParticipantID}] = cloneMark(mark)
	}

	return nil
}

// ListRoster returns the committed marks for a session ordered by participant.
func (s *Storage) ListRoster(ctx context.Context, day, sessionType string) ([]persistence.AttendanceMark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	marks := make([]persistence.AttendanceMark, 0)
	for key, mark := range s.marks {
		if key.day == day && key.sessionType == sessionType {
			marks = append(marks, cloneMark(mark))
		}
	}

	sort.Slice(marks, func(i, j int) bool {
		return marks[i].ParticipantID < marks[j].ParticipantID
	})

	return marks, nil
}

// ListParticipantHistory returns a participant's marks ordered by day descending.
func (s *Storage) ListParticipantHistory(ctx context.Context, participantID, sessionType string) ([]persistence.AttendanceMark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	marks := make([]persistence.AttendanceMark, 0)
	for key, mark := range s.marks {
		if key.participantID == participantID && key.sessionType == sessionType {
			marks = append(marks, cloneMark(mark))
		}
	}

	sort.Slice(marks, func(i, j int) bool {
		return marks[i].Day > marks[j].Day
	})

	return marks, nil
}

// --- ParticipantRepository implementation ---

// CreateParticipant stores a new participant.
func (s *Storage) CreateParticipant(ctx context.Context, participant persistence.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if participant.ID == "" || strings.TrimSpace(participant.Email) == "" {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.participants[participant.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.ensureUniqueEmailLocked(participant.ID, participant.Email); err != nil {
		return err
	}

	now := time.Now().UTC()
	participant.CreatedAt = now
	participant.UpdatedAt = now

	s.participants[participant.ID] = participant
	return nil
}

// UpdateParticipant updates an existing participant.
func (s *Storage) UpdateParticipant(ctx context.Context, participant persistence.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.participants[participant.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueEmailLocked(participant.ID, participant.Email); err != nil {
		return err
	}

	participant.CreatedAt = existing.CreatedAt
	participant.UpdatedAt = time.Now().UTC()
	s.participants[participant.ID] = participant
	return nil
}

// GetParticipant retrieves a participant by ID.
func (s *Storage) GetParticipant(ctx context.Context, id string) (persistence.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participant, ok := s.participants[id]
	if !ok {
		return persistence.Participant{}, persistence.ErrNotFound
	}
	return participant, nil
}

// GetParticipantByEmail retrieves a participant by email address.
func (s *Storage) GetParticipantByEmail(ctx context.Context, email string) (persistence.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(strings.TrimSpace(email))
	for _, participant := range s.participants {
		if strings.ToLower(participant.Email) == lower {
			return participant, nil
		}
	}
	return persistence.Participant{}, persistence.ErrNotFound
}

// ListParticipants returns all participants ordered by display name.
func (s *Storage) ListParticipants(ctx context.Context) ([]persistence.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participants := make([]persistence.Participant, 0, len(s.participants))
	for _, participant := range s.participants {
		participants = append(participants, participant)
	}

	sort.Slice(participants, func(i, j int) bool {
		if participants[i].DisplayName == participants[j].DisplayName {
			return participants[i].ID < participants[j].ID
		}
		return participants[i].DisplayName < participants[j].DisplayName
	})

	return participants, nil
}

// DeleteParticipant removes a participant by ID.
func (s *Storage) DeleteParticipant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.participants, id)
	return nil
}

func (s *Storage) ensureUniqueEmailLocked(id, email string) error {
	lower := strings.ToLower(strings.TrimSpace(email))
	for existingID, participant := range s.participants {
		if existingID == id {
			continue
		}
		if strings.ToLower(participant.Email) == lower {
			return persistence.ErrDuplicate
		}
	}
	return nil
}

// --- LearningPointRepository implementation ---

// CreateLearningPoint stores a new learning point.
func (s *Storage) CreateLearningPoint(ctx context.Context, point persistence.LearningPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if point.ID == "" || point.Day == "" || point.Type == "" {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.learningPoints[point.ID]; ok {
		return persistence.ErrDuplicate
	}

	now := time.Now().UTC()
	point.CreatedAt = now
	point.UpdatedAt = now

	s.learningPoints[point.ID] = point
	return nil
}

// UpdateLearningPoint overwrites the content of an existing learning point.
func (s *Storage) UpdateLearningPoint(ctx context.Context, point persistence.LearningPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.learningPoints[point.ID]
	if !ok {
		return persistence.ErrNotFound
	}

	existing.Content = point.Content
	existing.UpdatedAt = time.Now().UTC()
	s.learningPoints[point.ID] = existing
	return nil
}

// GetLearningPoint retrieves a learning point by ID.
func (s *Storage) GetLearningPoint(ctx context.Context, id string) (persistence.LearningPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	point, ok := s.learningPoints[id]
	if !ok {
		return persistence.LearningPoint{}, persistence.ErrNotFound
	}
	return point, nil
}

// ListLearningPoints returns the learning points for a session ordered by
// creation time.
func (s *Storage) ListLearningPoints(ctx context.Context, day, sessionType string) ([]persistence.LearningPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := make([]persistence.LearningPoint, 0)
	for _, point := range s.learningPoints {
		if point.Day == day && point.Type == sessionType {
			points = append(points, point)
		}
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].CreatedAt.Equal(points[j].CreatedAt) {
			return points[i].ID < points[j].ID
		}
		return points[i].CreatedAt.Before(points[j].CreatedAt)
	})

	return points, nil
}

// DeleteLearningPoint removes a learning point by ID.
func (s *Storage) DeleteLearningPoint(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.learningPoints[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.learningPoints, id)
	return nil
}

// --- AuthSessionRepository implementation ---

// CreateAuthSession stores a new token for a participant.
func (s *Storage) CreateAuthSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" || session.ParticipantID == "" || strings.TrimSpace(session.Token) == "" {
		return persistence.AuthSession{}, persistence.ErrConstraintViolation
	}
	if _, ok := s.authSessions[session.Token]; ok {
		return persistence.AuthSession{}, persistence.ErrDuplicate
	}

	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	s.authSessions[session.Token] = cloneAuthSession(session)
	return cloneAuthSession(session), nil
}

// GetAuthSession retrieves a token record by token value.
func (s *Storage) GetAuthSession(ctx context.Context, token string) (persistence.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.authSessions[strings.TrimSpace(token)]
	if !ok {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}
	return cloneAuthSession(session), nil
}

// RevokeAuthSession marks a token as revoked, keeping an earlier revocation.
func (s *Storage) RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) (persistence.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.authSessions[strings.TrimSpace(token)]
	if !ok {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}

	if session.RevokedAt == nil {
		stamp := revokedAt.UTC()
		session.RevokedAt = &stamp
		session.UpdatedAt = stamp
		s.authSessions[session.Token] = cloneAuthSession(session)
	}

	return cloneAuthSession(session), nil
}

// DeleteExpiredAuthSessions removes tokens expired before the reference time.
func (s *Storage) DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.authSessions {
		if session.ExpiresAt.Before(reference) {
			delete(s.authSessions, token)
		}
	}
	return nil
}

// --- Helpers ---

func cloneSession(session persistence.Session) persistence.Session {
	out := session
	if session.StartedAt != nil {
		value := *session.StartedAt
		out.StartedAt = &value
	}
	if session.EndedAt != nil {
		value := *session.EndedAt
		out.EndedAt = &value
	}
	return out
}

func cloneMark(mark persistence.AttendanceMark) persistence.AttendanceMark {
	out := mark
	if mark.Reason != nil {
		value := *mark.Reason
		out.Reason = &value
	}
	return out
}

func cloneAuthSession(session persistence.AuthSession) persistence.AuthSession {
	out := session
	if session.RevokedAt != nil {
		value := *session.RevokedAt
		out.RevokedAt = &value
	}
	return out
}
