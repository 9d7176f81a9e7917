package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/ritual-engine/internal/persistence"
)

// SessionRepository captures the persistence interactions needed by the
// session state machine.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, day string, sessionType SessionType) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	ListSessions(ctx context.Context, filter SessionListFilter) ([]Session, error)
}

// SessionListFilter narrows session listings.
type SessionListFilter struct {
	Type     SessionType
	Status   SessionStatus
	DayFrom  string
	DayUntil string
}

// RosterCommitter is the reconciler hook invoked during termination. Commit
// must be atomic: on error nothing has been durably written and the session
// must remain active.
type RosterCommitter interface {
	Commit(ctx context.Context, session Session) ([]AttendanceMark, error)
	DropWorkingSet(key SessionKey)
}

// SessionService owns the lifecycle of ritual sessions. Transitions on the
// same (day, type) key are mutually exclusive; one record exists per key and
// its status only ever advances scheduled -> active -> ended.
type SessionService struct {
	sessions SessionRepository
	roster   RosterCommitter
	locks    *transitionLocks
	notifier *sessionNotifier
	now      func() time.Time
	logger   *slog.Logger
}

// NewSessionService wires dependencies for session lifecycle operations.
func NewSessionService(sessions SessionRepository, roster RosterCommitter, now func() time.Time) *SessionService {
	return NewSessionServiceWithLogger(sessions, roster, now, nil)
}

// NewSessionServiceWithLogger constructs a SessionService with a specified logger.
func NewSessionServiceWithLogger(sessions SessionRepository, roster RosterCommitter, now func() time.Time, logger *slog.Logger) *SessionService {
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		sessions: sessions,
		roster:   roster,
		locks:    newTransitionLocks(),
		notifier: newSessionNotifier(),
		now:      now,
		logger:   defaultLogger(logger),
	}
}

// Subscribe registers a listener invoked after every successful transition.
func (s *SessionService) Subscribe(listener SessionListener) {
	if s == nil {
		return
	}
	s.notifier.subscribe(listener)
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// Schedule creates the session record for (day, type) in the scheduled state.
// The target start time must not precede the current instant.
func (s *SessionService) Schedule(ctx context.Context, params ScheduleSessionParams) (Session, error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	if s.sessions == nil {
		return Session{}, fmt.Errorf("session repository not configured")
	}
	if !params.Principal.IsAdmin {
		return Session{}, ErrUnauthorized
	}

	key, err := normalizeKey(params.Day, params.Type)
	if err != nil {
		return Session{}, err
	}

	if params.At.IsZero() || params.At.Before(s.now()) {
		return Session{}, ErrInvalidSchedule
	}

	logger := s.loggerWith(ctx, "Schedule", "session", key.String())

	if !s.locks.acquire(key) {
		return Session{}, ErrConcurrentTransition
	}
	defer s.locks.release(key)

	session := Session{
		Day:         key.Day,
		Type:        key.Type,
		Status:      SessionScheduled,
		ScheduledAt: params.At,
		CreatedBy:   params.Principal.ParticipantID,
	}

	created, err := s.sessions.CreateSession(ctx, session)
	if err != nil {
		err = mapSessionRepoError(err)
		logger.ErrorContext(ctx, "failed to schedule session", "error", err, "error_kind", ErrorKind(err))
		return Session{}, err
	}

	logger.InfoContext(ctx, "session scheduled", "scheduled_at", created.ScheduledAt)
	s.notifier.notify(SessionEvent{Day: created.Day, Type: created.Type, Status: created.Status})
	return created, nil
}

// Reschedule moves the target start time of a session that has not started.
// It never changes the state; it is permitted only while scheduled.
func (s *SessionService) Reschedule(ctx context.Context, params RescheduleSessionParams) (Session, error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	if !params.Principal.IsAdmin {
		return Session{}, ErrUnauthorized
	}

	key, err := normalizeKey(params.Day, params.Type)
	if err != nil {
		return Session{}, err
	}
	if params.At.IsZero() || params.At.Before(s.now()) {
		return Session{}, ErrInvalidSchedule
	}

	logger := s.loggerWith(ctx, "Reschedule", "session", key.String())

	if !s.locks.acquire(key) {
		return Session{}, ErrConcurrentTransition
	}
	defer s.locks.release(key)

	session, err := s.sessions.GetSession(ctx, key.Day, key.Type)
	if err != nil {
		return Session{}, mapSessionRepoError(err)
	}
	if session.Status != SessionScheduled {
		return Session{}, ErrIllegalTransition
	}

	session.ScheduledAt = params.At
	updated, err := s.sessions.UpdateSession(ctx, session)
	if err != nil {
		err = mapSessionRepoError(err)
		logger.ErrorContext(ctx, "failed to reschedule session", "error", err, "error_kind", ErrorKind(err))
		return Session{}, err
	}

	logger.InfoContext(ctx, "session rescheduled", "scheduled_at", updated.ScheduledAt)
	return updated, nil
}

// Activate moves a scheduled session into its active phase, opening the
// attendance working set for edits.
func (s *SessionService) Activate(ctx context.Context, params TransitionParams) (Session, error) {
	return s.transition(ctx, params, "Activate", func(session *Session) error {
		if session.Status != SessionScheduled {
			return ErrIllegalTransition
		}
		startedAt := s.now()
		session.Status = SessionActive
		session.StartedAt = &startedAt
		return nil
	}, nil)
}

// Terminate ends an active session. The roster commit runs first and must
// complete; only then does the status flip to ended. A commit failure leaves
// the session active and the working set untouched so the caller can retry.
func (s *SessionService) Terminate(ctx context.Context, params TransitionParams) (Session, error) {
	var committed []AttendanceMark

	session, err := s.transition(ctx, params, "Terminate", func(session *Session) error {
		if session.Status != SessionActive {
			return ErrIllegalTransition
		}

		if s.roster != nil {
			roster, commitErr := s.roster.Commit(ctx, *session)
			if commitErr != nil {
				return fmt.Errorf("%w: %w", ErrCommitFailed, commitErr)
			}
			committed = roster
		}

		endedAt := s.now()
		session.Status = SessionEnded
		session.EndedAt = &endedAt
		return nil
	}, func(session Session) {
		// The roster is durable and the status flipped; the working set has
		// served its purpose.
		if s.roster != nil {
			s.roster.DropWorkingSet(session.Key())
		}
	})
	if err != nil {
		return Session{}, err
	}

	s.loggerWith(ctx, "Terminate", "session", session.Key().String()).
		InfoContext(ctx, "session ended", "roster_size", len(committed))
	return session, nil
}

// MarkSynced records that the external export ran for an ended session. It is
// idempotent: marking an already-synced session is a no-op, which keeps
// export retries safe.
func (s *SessionService) MarkSynced(ctx context.Context, params TransitionParams) (Session, error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	if !params.Principal.IsAdmin {
		return Session{}, ErrUnauthorized
	}

	key, err := normalizeKey(params.Day, params.Type)
	if err != nil {
		return Session{}, err
	}

	logger := s.loggerWith(ctx, "MarkSynced", "session", key.String())

	if !s.locks.acquire(key) {
		return Session{}, ErrConcurrentTransition
	}
	defer s.locks.release(key)

	session, err := s.sessions.GetSession(ctx, key.Day, key.Type)
	if err != nil {
		return Session{}, mapSessionRepoError(err)
	}
	if session.Status != SessionEnded {
		return Session{}, ErrIllegalTransition
	}
	if session.Synced {
		return session, nil
	}

	session.Synced = true
	updated, err := s.sessions.UpdateSession(ctx, session)
	if err != nil {
		err = mapSessionRepoError(err)
		logger.ErrorContext(ctx, "failed to mark session synced", "error", err, "error_kind", ErrorKind(err))
		return Session{}, err
	}

	logger.InfoContext(ctx, "session marked synced")
	return updated, nil
}

// Get returns the session for (day, type).
func (s *SessionService) Get(ctx context.Context, day string, sessionType SessionType) (Session, error) {
	if s == nil || s.sessions == nil {
		return Session{}, fmt.Errorf("session repository not configured")
	}
	key, err := normalizeKey(day, sessionType)
	if err != nil {
		return Session{}, err
	}
	session, err := s.sessions.GetSession(ctx, key.Day, key.Type)
	if err != nil {
		return Session{}, mapSessionRepoError(err)
	}
	return session, nil
}

// List enumerates sessions matching the filter.
func (s *SessionService) List(ctx context.Context, filter SessionListFilter) ([]Session, error) {
	if s == nil || s.sessions == nil {
		return nil, fmt.Errorf("session repository not configured")
	}
	sessions, err := s.sessions.ListSessions(ctx, filter)
	if err != nil {
		return nil, mapSessionRepoError(err)
	}
	return sessions, nil
}

// transition runs a guarded state change under the per-key lock: load,
// mutate, store with an optimistic version check, then notify.
func (s *SessionService) transition(ctx context.Context, params TransitionParams, operation string, apply func(*Session) error, after func(Session)) (Session, error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	if s.sessions == nil {
		return Session{}, fmt.Errorf("session repository not configured")
	}
	if !params.Principal.IsAdmin {
		return Session{}, ErrUnauthorized
	}

	key, err := normalizeKey(params.Day, params.Type)
	if err != nil {
		return Session{}, err
	}

	logger := s.loggerWith(ctx, operation, "session", key.String())

	if !s.locks.acquire(key) {
		return Session{}, ErrConcurrentTransition
	}
	defer s.locks.release(key)

	session, err := s.sessions.GetSession(ctx, key.Day, key.Type)
	if err != nil {
		return Session{}, mapSessionRepoError(err)
	}

	if err := apply(&session); err != nil {
		logger.ErrorContext(ctx, "transition rejected", "status", session.Status, "error", err, "error_kind", ErrorKind(err))
		return Session{}, err
	}

	updated, err := s.sessions.UpdateSession(ctx, session)
	if err != nil {
		err = mapSessionRepoError(err)
		logger.ErrorContext(ctx, "failed to store transition", "error", err, "error_kind", ErrorKind(err))
		return Session{}, err
	}

	if after != nil {
		after(updated)
	}

	logger.InfoContext(ctx, "session transitioned", "status", updated.Status)
	s.notifier.notify(SessionEvent{Day: updated.Day, Type: updated.Type, Status: updated.Status})
	return updated, nil
}

func normalizeKey(day string, sessionType SessionType) (SessionKey, error) {
	vErr := &ValidationError{}

	normalized, err := NormalizeDay(day)
	if err != nil {
		vErr.add("day", "day must be a date in 2006-01-02 form")
	}
	if !sessionType.Valid() {
		vErr.add("type", "unknown session type")
	}
	if vErr.HasErrors() {
		return SessionKey{}, vErr
	}
	return SessionKey{Day: normalized, Type: sessionType}, nil
}

func mapSessionRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrVersionConflict):
		// The optimistic check is the backstop behind the per-key lock; a
		// conflict means another writer slipped in between process instances.
		return ErrConcurrentTransition
	}
	return err
}
