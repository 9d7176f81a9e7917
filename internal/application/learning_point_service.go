package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// LearningPointRepository captures the persistence operations needed by the
// learning point service.
type LearningPointRepository interface {
	CreateLearningPoint(ctx context.Context, point LearningPoint) (LearningPoint, error)
	GetLearningPoint(ctx context.Context, id string) (LearningPoint, error)
	UpdateLearningPoint(ctx context.Context, point LearningPoint) (LearningPoint, error)
	DeleteLearningPoint(ctx context.Context, id string) error
	ListLearningPoints(ctx context.Context, day string, sessionType SessionType) ([]LearningPoint, error)
}

// LearningPointService manages participant-authored learning points. Every
// mutation consults the owning session's live state: once the session has
// ended its learning points are read-only.
type LearningPointService struct {
	points      LearningPointRepository
	sessions    SessionReader
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewLearningPointService wires dependencies for learning point operations.
func NewLearningPointService(points LearningPointRepository, sessions SessionReader, idGenerator func() string, now func() time.Time) *LearningPointService {
	return NewLearningPointServiceWithLogger(points, sessions, idGenerator, now, nil)
}

// NewLearningPointServiceWithLogger constructs a LearningPointService with a specified logger.
func NewLearningPointServiceWithLogger(points LearningPointRepository, sessions SessionReader, idGenerator func() string, now func() time.Time, logger *slog.Logger) *LearningPointService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &LearningPointService{
		points:      points,
		sessions:    sessions,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateLearningPoint records a note against the day's session. The session
// must exist and must not have ended.
func (s *LearningPointService) CreateLearningPoint(ctx context.Context, params CreateLearningPointParams) (LearningPoint, error) {
	if s == nil {
		return LearningPoint{}, fmt.Errorf("LearningPointService is nil")
	}
	if s.points == nil {
		return LearningPoint{}, fmt.Errorf("learning point repository not configured")
	}

	key, err := normalizeKey(params.Input.Day, params.Input.Type)
	if err != nil {
		return LearningPoint{}, err
	}

	content := strings.TrimSpace(params.Input.Content)
	if content == "" {
		vErr := &ValidationError{}
		vErr.add("content", "content is required")
		return LearningPoint{}, vErr
	}

	if err := s.ensureUnlocked(ctx, key); err != nil {
		return LearningPoint{}, err
	}

	point := LearningPoint{
		ID:            s.idGenerator(),
		Day:           key.Day,
		Type:          key.Type,
		ParticipantID: params.Principal.ParticipantID,
		Content:       content,
		CreatedAt:     s.now(),
	}
	point.UpdatedAt = point.CreatedAt

	persisted, err := s.points.CreateLearningPoint(ctx, point)
	if err != nil {
		return LearningPoint{}, mapSessionRepoError(err)
	}
	persisted.Editable = true

	serviceLogger(ctx, s.logger, "LearningPointService", "CreateLearningPoint", "session", key.String()).
		InfoContext(ctx, "learning point recorded", "point_id", persisted.ID)
	return persisted, nil
}

// UpdateLearningPoint edits a note's content. Authors may edit their own
// notes and administrators anyone's, in both cases only while the owning
// session has not ended.
func (s *LearningPointService) UpdateLearningPoint(ctx context.Context, params UpdateLearningPointParams) (LearningPoint, error) {
	if s == nil {
		return LearningPoint{}, fmt.Errorf("LearningPointService is nil")
	}
	if s.points == nil {
		return LearningPoint{}, fmt.Errorf("learning point repository not configured")
	}

	existing, err := s.points.GetLearningPoint(ctx, params.PointID)
	if err != nil {
		return LearningPoint{}, mapSessionRepoError(err)
	}

	if existing.ParticipantID != params.Principal.ParticipantID && !params.Principal.IsAdmin {
		return LearningPoint{}, ErrUnauthorized
	}

	content := strings.TrimSpace(params.Content)
	if content == "" {
		vErr := &ValidationError{}
		vErr.add("content", "content is required")
		return LearningPoint{}, vErr
	}

	if err := s.ensureUnlocked(ctx, existing.Key()); err != nil {
		return LearningPoint{}, err
	}

	existing.Content = content
	existing.UpdatedAt = s.now()

	persisted, err := s.points.UpdateLearningPoint(ctx, existing)
	if err != nil {
		return LearningPoint{}, mapSessionRepoError(err)
	}
	persisted.Editable = true
	return persisted, nil
}

// DeleteLearningPoint removes a note under the same ownership and lock rules
// as UpdateLearningPoint.
func (s *LearningPointService) DeleteLearningPoint(ctx context.Context, principal Principal, pointID string) error {
	if s == nil {
		return fmt.Errorf("LearningPointService is nil")
	}
	if s.points == nil {
		return fmt.Errorf("learning point repository not configured")
	}

	existing, err := s.points.GetLearningPoint(ctx, pointID)
	if err != nil {
		return mapSessionRepoError(err)
	}

	if existing.ParticipantID != principal.ParticipantID && !principal.IsAdmin {
		return ErrUnauthorized
	}

	if err := s.ensureUnlocked(ctx, existing.Key()); err != nil {
		return err
	}

	if err := s.points.DeleteLearningPoint(ctx, pointID); err != nil {
		return mapSessionRepoError(err)
	}
	return nil
}

// ListLearningPoints returns the notes for a session with their editability
// derived from the session's live state.
func (s *LearningPointService) ListLearningPoints(ctx context.Context, day string, sessionType SessionType) ([]LearningPoint, error) {
	if s == nil || s.points == nil {
		return nil, fmt.Errorf("learning point repository not configured")
	}

	key, err := normalizeKey(day, sessionType)
	if err != nil {
		return nil, err
	}

	points, err := s.points.ListLearningPoints(ctx, key.Day, key.Type)
	if err != nil {
		return nil, mapSessionRepoError(err)
	}

	editable := true
	if s.sessions != nil {
		session, err := s.sessions.GetSession(ctx, key.Day, key.Type)
		if err != nil {
			return nil, mapSessionRepoError(err)
		}
		editable = session.Status != SessionEnded
	}

	out := make([]LearningPoint, len(points))
	copy(out, points)
	for i := range out {
		out[i].Editable = editable
	}
	return out, nil
}

// ensureUnlocked rejects mutations on sessions that have ended.
func (s *LearningPointService) ensureUnlocked(ctx context.Context, key SessionKey) error {
	if s.sessions == nil {
		return fmt.Errorf("session reader not configured")
	}
	session, err := s.sessions.GetSession(ctx, key.Day, key.Type)
	if err != nil {
		return mapSessionRepoError(err)
	}
	if session.Status == SessionEnded {
		return ErrSessionLocked
	}
	return nil
}
