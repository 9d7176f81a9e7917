package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ritual-engine/internal/persistence"
)

func TestLearningPointService_CreateLearningPoint(t *testing.T) {
	t.Parallel()

	day := "2026-03-02"

	t.Run("records a point against an active session", func(t *testing.T) {
		t.Parallel()

		now := time.Now().UTC()
		sessions := newSessionStoreStub()
		sessions.seed(Session{Day: day, Type: SessionTypeLearningHour, Status: SessionActive})
		repo := newLearningPointRepositoryStub()
		svc := NewLearningPointService(repo, sessions, func() string { return "point-1" }, func() time.Time { return now })

		created, err := svc.CreateLearningPoint(context.Background(), CreateLearningPointParams{
			Principal: Principal{ParticipantID: "member-1"},
			Input:     LearningPointInput{Day: day, Type: SessionTypeLearningHour, Content: "  context cancellation patterns  "},
		})
		if err != nil {
			t.Fatalf("CreateLearningPoint failed: %v", err)
		}

		if created.ID != "point-1" {
			t.Fatalf("expected generated id, got %q", created.ID)
		}
		if created.Content != "context cancellation patterns" {
			t.Fatalf("expected trimmed content, got %q", created.Content)
		}
		if !created.Editable {
			t.Fatalf("expected point to be editable while session is open")
		}
	})

	t.Run("rejects points once the session ended", func(t *testing.T) {
		t.Parallel()

		sessions := newSessionStoreStub()
		sessions.seed(Session{Day: day, Type: SessionTypeLearningHour, Status: SessionEnded})
		svc := NewLearningPointService(newLearningPointRepositoryStub(), sessions, nil, nil)

		_, err := svc.CreateLearningPoint(context.Background(), CreateLearningPointParams{
			Principal: Principal{ParticipantID: "member-1"},
			Input:     LearningPointInput{Day: day, Type: SessionTypeLearningHour, Content: "too late"},
		})
		if !errors.Is(err, ErrSessionLocked) {
			t.Fatalf("expected ErrSessionLocked, got %v", err)
		}
	})

	t.Run("requires content", func(t *testing.T) {
		t.Parallel()

		sessions := newSessionStoreStub()
		sessions.seed(Session{Day: day, Type: SessionTypeLearningHour, Status: SessionActive})
		svc := NewLearningPointService(newLearningPointRepositoryStub(), sessions, nil, nil)

		_, err := svc.CreateLearningPoint(context.Background(), CreateLearningPointParams{
			Principal: Principal{ParticipantID: "member-1"},
			Input:     LearningPointInput{Day: day, Type: SessionTypeLearningHour, Content: "   "},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("rejects unknown sessions", func(t *testing.T) {
		t.Parallel()

		svc := NewLearningPointService(newLearningPointRepositoryStub(), newSessionStoreStub(), nil, nil)

		_, err := svc.CreateLearningPoint(context.Background(), CreateLearningPointParams{
			Principal: Principal{ParticipantID: "member-1"},
			Input:     LearningPointInput{Day: day, Type: SessionTypeLearningHour, Content: "orphan"},
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLearningPointService_UpdateLearningPoint(t *testing.T) {
	t.Parallel()

	day := "2026-03-02"

	seedPoint := func(repo *learningPointRepositoryStub) {
		repo.seed(LearningPoint{
			ID:            "point-1",
			Day:           day,
			Type:          SessionTypeLearningHour,
			ParticipantID: "member-1",
			Content:       "original",
		})
	}

	t.Run("authors may edit their own points", func(t *testing.T) {
		t.Parallel()

		sessions := newSessionStoreStub()
		sessions.seed(Session{Day: day, Type: SessionTypeLearningHour, Status: SessionActive})
		repo := newLearningPointRepositoryStub()
		seedPoint(repo)
		svc := NewLearningPointService(repo, sessions, nil, nil)

		updated, err := svc.UpdateLearningPoint(context.Background(), UpdateLearningPointParams{
			Principal: Principal{ParticipantID: "member-1"},
			PointID:   "point-1",
			Content:   "revised",
		})
		if err != nil {
			t.Fatalf("UpdateLearningPoint failed: %v", err)
		}
		if updated.Content != "revised" {
			t.Fatalf("expected revised content, got %q", updated.Content)
		}
	})

	t.Run("other participants may not edit", func(t *testing.T) {
		t.Parallel()

		sessions := newSessionStoreStub()
		sessions.seed(Session{Day: day, Type: SessionTypeLearningHour, Status: SessionActive})
		repo := newLearningPointRepositoryStub()
		seedPoint(repo)
		svc := NewLearningPointService(repo, sessions, nil, nil)

		_, err := svc.UpdateLearningPoint(context.Background(), UpdateLearningPointParams{
			Principal: Principal{ParticipantID: "member-2"},
			PointID:   "point-1",
			Content:   "hijack",
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("admins may edit anyone's points", func(t *testing.T) {
		t.Parallel()

		sessions := newSessionStoreStub()
		sessions.seed(Session{Day: day, Type: SessionTypeLearningHour, Status: SessionActive})
		repo := newLearningPointRepositoryStub()
		seedPoint(repo)
		svc := NewLearningPointService(repo, sessions, nil, nil)

		_, err := svc.UpdateLearningPoint(context.Background(), UpdateLearningPointParams{
			Principal: Principal{ParticipantID: "admin-1", IsAdmin: true},
			PointID:   "point-1",
			Content:   "moderated",
		})
		if err != nil {
			t.Fatalf("expected admin edit to succeed: %v", err)
		}
	})

	t.Run("locked once the session ended", func(t *testing.T) {
		t.Parallel()

		sessions := newSessionStoreStub()
		sessions.seed(Session{Day: day, Type: SessionTypeLearningHour, Status: SessionEnded})
		repo := newLearningPointRepositoryStub()
		seedPoint(repo)
		svc := NewLearningPointService(repo, sessions, nil, nil)

		_, err := svc.UpdateLearningPoint(context.Background(), UpdateLearningPointParams{
			Principal: Principal{ParticipantID: "member-1"},
			PointID:   "point-1",
			Content:   "too late",
		})
		if !errors.Is(err, ErrSessionLocked) {
			t.Fatalf("expected ErrSessionLocked, got %v", err)
		}
	})
}

func TestLearningPointService_DeleteLearningPoint(t *testing.T) {
	t.Parallel()

	day := "2026-03-02"

	t.Run("deletes while the session is open", func(t *testing.T) {
		t.Parallel()

		sessions := newSessionStoreStub()
		sessions.seed(Session{Day: day, Type: SessionTypeLearningHour, Status: SessionActive})
		repo := newLearningPointRepositoryStub()
		repo.seed(LearningPoint{ID: "point-1", Day: day, Type: SessionTypeLearningHour, ParticipantID: "member-1"})
		svc := NewLearningPointService(repo, sessions, nil, nil)

		if err := svc.DeleteLearningPoint(context.Background(), Principal{ParticipantID: "member-1"}, "point-1"); err != nil {
			t.Fatalf("DeleteLearningPoint failed: %v", err)
		}
		if _, ok := repo.points["point-1"]; ok {
			t.Fatalf("expected point removed")
		}
	})

	t.Run("locked once the session ended", func(t *testing.T) {
		t.Parallel()

		sessions := newSessionStoreStub()
		sessions.seed(Session{Day: day, Type: SessionTypeLearningHour, Status: SessionEnded})
		repo := newLearningPointRepositoryStub()
		repo.seed(LearningPoint{ID: "point-1", Day: day, Type: SessionTypeLearningHour, ParticipantID: "member-1"})
		svc := NewLearningPointService(repo, sessions, nil, nil)

		err := svc.DeleteLearningPoint(context.Background(), Principal{ParticipantID: "member-1"}, "point-1")
		if !errors.Is(err, ErrSessionLocked) {
			t.Fatalf("expected ErrSessionLocked, got %v", err)
		}
	})
}

func TestLearningPointService_ListLearningPoints(t *testing.T) {
	t.Parallel()

	day := "2026-03-02"

	t.Run("projects editability from the session state", func(t *testing.T) {
		t.Parallel()

		sessions := newSessionStoreStub()
		sessions.seed(Session{Day: day, Type: SessionTypeLearningHour, Status: SessionActive})
		repo := newLearningPointRepositoryStub()
		repo.seed(LearningPoint{ID: "point-1", Day: day, Type: SessionTypeLearningHour, ParticipantID: "member-1", Content: "a"})
		svc := NewLearningPointService(repo, sessions, nil, nil)

		points, err := svc.ListLearningPoints(context.Background(), day, SessionTypeLearningHour)
		if err != nil {
			t.Fatalf("ListLearningPoints failed: %v", err)
		}
		if len(points) != 1 || !points[0].Editable {
			t.Fatalf("expected editable point while active, got %#v", points)
		}

		sessions.seed(Session{Day: day, Type: SessionTypeLearningHour, Status: SessionEnded})

		points, err = svc.ListLearningPoints(context.Background(), day, SessionTypeLearningHour)
		if err != nil {
			t.Fatalf("ListLearningPoints failed: %v", err)
		}
		if len(points) != 1 || points[0].Editable {
			t.Fatalf("expected read-only point once ended, got %#v", points)
		}
	})
}

// learningPointRepositoryStub stores points by id.
type learningPointRepositoryStub struct {
	points map[string]LearningPoint

	createErr error
	updateErr error
}

func newLearningPointRepositoryStub() *learningPointRepositoryStub {
	return &learningPointRepositoryStub{points: make(map[string]LearningPoint)}
}

func (s *learningPointRepositoryStub) seed(point LearningPoint) {
	s.points[point.ID] = point
}

func (s *learningPointRepositoryStub) CreateLearningPoint(ctx context.Context, point LearningPoint) (LearningPoint, error) {
	if s.createErr != nil {
		return LearningPoint{}, s.createErr
	}
	s.points[point.ID] = point
	return point, nil
}

func (s *learningPointRepositoryStub) GetLearningPoint(ctx context.Context, id string) (LearningPoint, error) {
	point, ok := s.points[id]
	if !ok {
		return LearningPoint{}, persistence.ErrNotFound
	}
	return point, nil
}

func (s *learningPointRepositoryStub) UpdateLearningPoint(ctx context.Context, point LearningPoint) (LearningPoint, error) {
	if s.updateErr != nil {
		return LearningPoint{}, s.updateErr
	}
	if _, ok := s.points[point.ID]; !ok {
		return LearningPoint{}, persistence.ErrNotFound
	}
	s.points[point.ID] = point
	return point, nil
}

func (s *learningPointRepositoryStub) DeleteLearningPoint(ctx context.Context, id string) error {
	if _, ok := s.points[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.points, id)
	return nil
}

func (s *learningPointRepositoryStub) ListLearningPoints(ctx context.Context, day string, sessionType SessionType) ([]LearningPoint, error) {
	var out []LearningPoint
	for _, point := range s.points {
		if point.Day == day && point.Type == sessionType {
			out = append(out, point)
		}
	}
	return out, nil
}
