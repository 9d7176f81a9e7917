package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/ritual-engine/internal/application"
)

type streakService interface {
	ComputeStreak(ctx context.Context, params application.ComputeStreakParams) (int, error)
}

type StreakHandler struct {
	service   streakService
	responder responder
	logger    *slog.Logger
}

func NewStreakHandler(service streakService, logger *slog.Logger) *StreakHandler {
	base := defaultLogger(logger)
	return &StreakHandler{service: service, responder: newResponder(base), logger: base}
}

// Get computes the active attendance streak for one participant and ritual.
// The optional today query parameter pins the reference day for the count.
func (h *StreakHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	participantID, ok := ParticipantIDFromContext(r.Context())
	if !ok || participantID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipantID)
		return
	}

	query := r.URL.Query()
	sessionType := application.SessionType(strings.TrimSpace(query.Get("type")))
	if !sessionType.Valid() {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errUnknownStreakType)
		return
	}

	var today time.Time
	if raw := strings.TrimSpace(query.Get("today")); raw != "" {
		parsed, err := time.Parse(application.DayFormat, raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMalformedTodayParam)
			return
		}
		today = parsed
	}

	logger := handlerLogger(r.Context(), h.logger, "StreakHandler", "Get",
		"participant_id", participantID,
		"type", sessionType,
	)

	count, err := h.service.ComputeStreak(r.Context(), application.ComputeStreakParams{
		ParticipantID: participantID,
		Type:          sessionType,
		Today:         today,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "streak computation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("streak", count).InfoContext(r.Context(), "streak computed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, streakResponse{
		ParticipantID: participantID,
		Type:          string(sessionType),
		Streak:        count,
	})
}

type streakResponse struct {
	ParticipantID string `json:"participant_id"`
	Type          string `json:"type"`
	Streak        int    `json:"streak"`
}
