package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// AttendanceRepository captures the persistence interactions needed by the
// reconciler. SaveRoster is atomic: every mark or none.
type AttendanceRepository interface {
	SaveRoster(ctx context.Context, day string, sessionType SessionType, marks []AttendanceMark) error
	ListRoster(ctx context.Context, day string, sessionType SessionType) ([]AttendanceMark, error)
}

// ParticipantDirectory exposes the roster the reconciler defaults to Missed.
type ParticipantDirectory interface {
	GetParticipant(ctx context.Context, id string) (Participant, error)
	ListParticipants(ctx context.Context) ([]Participant, error)
}

// SessionReader exposes the current lifecycle state of a session.
type SessionReader interface {
	GetSession(ctx context.Context, day string, sessionType SessionType) (Session, error)
}

type tentativeMark struct {
	status AttendanceStatus
	reason string
}

// AttendanceService is the attendance reconciler. During a session's active
// phase it buffers per-participant status edits in an in-memory working set;
// at termination it commits the full roster in one atomic write. The working
// set is never visible outside the service until commit.
type AttendanceService struct {
	marks     AttendanceRepository
	directory ParticipantDirectory
	sessions  SessionReader
	now       func() time.Time
	logger    *slog.Logger

	mu          sync.Mutex
	workingSets map[SessionKey]map[string]tentativeMark
}

// NewAttendanceService wires dependencies for attendance reconciliation.
func NewAttendanceService(marks AttendanceRepository, directory ParticipantDirectory, sessions SessionReader, now func() time.Time) *AttendanceService {
	return NewAttendanceServiceWithLogger(marks, directory, sessions, now, nil)
}

// NewAttendanceServiceWithLogger constructs an AttendanceService with a specified logger.
func NewAttendanceServiceWithLogger(marks AttendanceRepository, directory ParticipantDirectory, sessions SessionReader, now func() time.Time, logger *slog.Logger) *AttendanceService {
	if now == nil {
		now = time.Now
	}
	return &AttendanceService{
		marks:       marks,
		directory:   directory,
		sessions:    sessions,
		now:         now,
		logger:      defaultLogger(logger),
		workingSets: make(map[SessionKey]map[string]tentativeMark),
	}
}

func (s *AttendanceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AttendanceService", operation, attrs...)
}

// SetTentativeStatus records a working-set edit for one participant. The
// session must be in its active phase. NotAvailable requires a non-empty
// reason. Last writer wins per participant; nothing is persisted here.
func (s *AttendanceService) SetTentativeStatus(ctx context.Context, params TentativeStatusParams) error {
	if s == nil {
		return fmt.Errorf("AttendanceService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session reader not configured")
	}

	key, err := normalizeKey(params.Day, params.Type)
	if err != nil {
		return err
	}

	if !params.Principal.IsAdmin && params.Principal.ParticipantID != params.ParticipantID {
		return ErrUnauthorized
	}

	if !params.Status.Valid() {
		vErr := &ValidationError{}
		vErr.add("status", "unknown attendance status")
		return vErr
	}

	reason := strings.TrimSpace(params.Reason)
	if params.Status == AttendanceNotAvailable && reason == "" {
		return ErrMissingReason
	}
	if params.Status != AttendanceNotAvailable {
		reason = ""
	}

	session, err := s.sessions.GetSession(ctx, key.Day, key.Type)
	if err != nil {
		return mapSessionRepoError(err)
	}
	if session.Status != SessionActive {
		return ErrSessionNotActive
	}

	if s.directory != nil {
		if _, err := s.directory.GetParticipant(ctx, params.ParticipantID); err != nil {
			return mapSessionRepoError(err)
		}
	}

	s.mu.Lock()
	set, ok := s.workingSets[key]
	if !ok {
		set = make(map[string]tentativeMark)
		s.workingSets[key] = set
	}
	set[params.ParticipantID] = tentativeMark{status: params.Status, reason: reason}
	s.mu.Unlock()

	s.loggerWith(ctx, "SetTentativeStatus", "session", key.String()).
		InfoContext(ctx, "tentative status recorded", "participant_id", params.ParticipantID, "status", params.Status)
	return nil
}

// WorkingSet returns an administrator's snapshot of the uncommitted edits for
// a session.
func (s *AttendanceService) WorkingSet(ctx context.Context, principal Principal, day string, sessionType SessionType) ([]AttendanceMark, error) {
	if s == nil {
		return nil, fmt.Errorf("AttendanceService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	key, err := normalizeKey(day, sessionType)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	set := s.workingSets[key]
	marks := make([]AttendanceMark, 0, len(set))
	for participantID, tentative := range set {
		marks = append(marks, AttendanceMark{
			Day:           key.Day,
			Type:          key.Type,
			ParticipantID: participantID,
			Status:        tentative.status,
			Reason:        tentative.reason,
		})
	}
	s.mu.Unlock()

	sort.Slice(marks, func(i, j int) bool {
		return marks[i].ParticipantID < marks[j].ParticipantID
	})
	return marks, nil
}

// Commit derives the final roster from the working set, covering every known
// participant and defaulting absentees to Missed, then writes it in one atomic
// batch. On failure the working set is left untouched and nothing has been
// persisted, so the caller can retry; a retry rebuilds and overwrites the same
// roster.
func (s *AttendanceService) Commit(ctx context.Context, session Session) ([]AttendanceMark, error) {
	if s == nil {
		return nil, fmt.Errorf("AttendanceService is nil")
	}
	if s.marks == nil {
		return nil, fmt.Errorf("attendance repository not configured")
	}
	if s.directory == nil {
		return nil, fmt.Errorf("participant directory not configured")
	}

	key := session.Key()
	logger := s.loggerWith(ctx, "Commit", "session", key.String())

	participants, err := s.directory.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	set := s.workingSets[key]
	edits := make(map[string]tentativeMark, len(set))
	for participantID, tentative := range set {
		edits[participantID] = tentative
	}
	s.mu.Unlock()

	markedAt := s.now()
	roster := make([]AttendanceMark, 0, len(participants))
	for _, participant := range participants {
		mark := AttendanceMark{
			Day:           key.Day,
			Type:          key.Type,
			ParticipantID: participant.ID,
			Status:        AttendanceMissed,
			MarkedAt:      markedAt,
		}
		if tentative, ok := edits[participant.ID]; ok {
			mark.Status = tentative.status
			mark.Reason = tentative.reason
		}
		roster = append(roster, mark)
	}

	sort.Slice(roster, func(i, j int) bool {
		return roster[i].ParticipantID < roster[j].ParticipantID
	})

	if err := s.marks.SaveRoster(ctx, key.Day, key.Type, roster); err != nil {
		logger.ErrorContext(ctx, "roster commit failed", "error", err)
		return nil, err
	}

	logger.InfoContext(ctx, "roster committed", "roster_size", len(roster))
	return roster, nil
}

// DropWorkingSet discards the buffered edits for a session. The state machine
// calls this once the session has durably reached ended.
func (s *AttendanceService) DropWorkingSet(key SessionKey) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.workingSets, key)
	s.mu.Unlock()
}

// Roster returns the committed attendance marks for a session. Before commit
// the roster is empty; working-set edits are never visible here.
func (s *AttendanceService) Roster(ctx context.Context, day string, sessionType SessionType) ([]AttendanceMark, error) {
	if s == nil || s.marks == nil {
		return nil, fmt.Errorf("attendance repository not configured")
	}
	key, err := normalizeKey(day, sessionType)
	if err != nil {
		return nil, err
	}
	return s.marks.ListRoster(ctx, key.Day, key.Type)
}

// IsEditable reports whether artifacts owned by the session may still be
// edited. It reads the live session state on every call; the answer flips to
// false in the same operation that ends the session and must never be served
// from a stale cache.
func (s *AttendanceService) IsEditable(ctx context.Context, day string, sessionType SessionType) (bool, error) {
	if s == nil || s.sessions == nil {
		return false, fmt.Errorf("session reader not configured")
	}
	key, err := normalizeKey(day, sessionType)
	if err != nil {
		return false, err
	}
	session, err := s.sessions.GetSession(ctx, key.Day, key.Type)
	if err != nil {
		return false, mapSessionRepoError(err)
	}
	return session.Status != SessionEnded, nil
}
