package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/ritual-engine/internal/streak"
)

// AttendanceHistory exposes a participant's committed marks, most recent
// first.
type AttendanceHistory interface {
	ListParticipantHistory(ctx context.Context, participantID string, sessionType SessionType) ([]AttendanceMark, error)
}

// StreakService computes consecutive-attendance streaks from committed
// history. It is read-only and safe for concurrent callers.
type StreakService struct {
	history    AttendanceHistory
	calculator *streak.Calculator
	now        func() time.Time
	logger     *slog.Logger
}

// NewStreakService wires dependencies for streak queries. A nil calculator
// defaults to a Monday-Saturday workweek with Sunday off.
func NewStreakService(history AttendanceHistory, calculator *streak.Calculator, now func() time.Time) *StreakService {
	return NewStreakServiceWithLogger(history, calculator, now, nil)
}

// NewStreakServiceWithLogger constructs a StreakService with a specified logger.
func NewStreakServiceWithLogger(history AttendanceHistory, calculator *streak.Calculator, now func() time.Time, logger *slog.Logger) *StreakService {
	if calculator == nil {
		calculator = streak.NewCalculator(time.Sunday)
	}
	if now == nil {
		now = time.Now
	}
	return &StreakService{
		history:    history,
		calculator: calculator,
		now:        now,
		logger:     defaultLogger(logger),
	}
}

// ComputeStreak returns the participant's active consecutive-attendance
// streak for a ritual. Today defaults to the current instant when unset.
func (s *StreakService) ComputeStreak(ctx context.Context, params ComputeStreakParams) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("StreakService is nil")
	}
	if s.history == nil {
		return 0, fmt.Errorf("attendance history not configured")
	}

	vErr := &ValidationError{}
	if params.ParticipantID == "" {
		vErr.add("participant_id", "participant is required")
	}
	if !params.Type.Valid() {
		vErr.add("type", "unknown session type")
	}
	if vErr.HasErrors() {
		return 0, vErr
	}

	today := params.Today
	if today.IsZero() {
		today = s.now()
	}

	marks, err := s.history.ListParticipantHistory(ctx, params.ParticipantID, params.Type)
	if err != nil {
		return 0, mapSessionRepoError(err)
	}

	entries := make([]streak.Entry, 0, len(marks))
	for _, mark := range marks {
		day, err := time.Parse(DayFormat, mark.Day)
		if err != nil {
			return 0, fmt.Errorf("malformed day %q in attendance history: %w", mark.Day, err)
		}
		entries = append(entries, streak.Entry{Day: day, Status: streak.Status(mark.Status)})
	}

	count := s.calculator.Consecutive(entries, today)

	serviceLogger(ctx, s.logger, "StreakService", "ComputeStreak").
		DebugContext(ctx, "streak computed", "participant_id", params.ParticipantID, "type", params.Type, "streak", count)
	return count, nil
}
