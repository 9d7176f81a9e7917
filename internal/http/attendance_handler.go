package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/ritual-engine/internal/application"
)

type attendanceService interface {
	SetTentativeStatus(ctx context.Context, params application.TentativeStatusParams) error
	WorkingSet(ctx context.Context, principal application.Principal, day string, sessionType application.SessionType) ([]application.AttendanceMark, error)
	Roster(ctx context.Context, day string, sessionType application.SessionType) ([]application.AttendanceMark, error)
	IsEditable(ctx context.Context, day string, sessionType application.SessionType) (bool, error)
}

type AttendanceHandler struct {
	service   attendanceService
	responder responder
	logger    *slog.Logger
}

func NewAttendanceHandler(service attendanceService, logger *slog.Logger) *AttendanceHandler {
	base := defaultLogger(logger)
	return &AttendanceHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AttendanceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AttendanceHandler", operation, attrs...)
}

// SetStatus buffers a tentative attendance edit for an active session.
func (h *AttendanceHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ref, ok := SessionRefFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionPath)
		return
	}

	participantID, ok := ParticipantIDFromContext(r.Context())
	if !ok || participantID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipantID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req setAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "SetStatus", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode attendance request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "SetStatus",
		"principal_id", principal.ParticipantID,
		"day", ref.Day,
		"type", ref.Type,
		"participant_id", participantID,
		"status", req.Status,
	)

	err := h.service.SetTentativeStatus(r.Context(), application.TentativeStatusParams{
		Principal:     principal,
		Day:           ref.Day,
		Type:          ref.Type,
		ParticipantID: participantID,
		Status:        application.AttendanceStatus(req.Status),
		Reason:        req.Reason,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "attendance edit rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "attendance edit buffered")
	w.WriteHeader(http.StatusNoContent)
}

// WorkingSet returns the uncommitted roster as the session's participants
// currently see it, with committed marks as the fallback.
func (h *AttendanceHandler) WorkingSet(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ref, ok := SessionRefFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionPath)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "WorkingSet", "principal_id", principal.ParticipantID, "day", ref.Day, "type", ref.Type)

	marks, err := h.service.WorkingSet(r.Context(), principal, ref.Day, ref.Type)
	if err != nil {
		logger.ErrorContext(r.Context(), "working set fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	editable, err := h.service.IsEditable(r.Context(), ref.Day, ref.Type)
	if err != nil {
		logger.ErrorContext(r.Context(), "editability check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, attendanceListResponse{
		Marks:    toAttendanceDTOs(marks),
		Editable: editable,
	})
}

// Roster returns the committed attendance for an ended session.
func (h *AttendanceHandler) Roster(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ref, ok := SessionRefFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionPath)
		return
	}

	logger := h.log(r.Context(), "Roster", "day", ref.Day, "type", ref.Type)

	marks, err := h.service.Roster(r.Context(), ref.Day, ref.Type)
	if err != nil {
		logger.ErrorContext(r.Context(), "roster fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	editable, err := h.service.IsEditable(r.Context(), ref.Day, ref.Type)
	if err != nil {
		logger.ErrorContext(r.Context(), "editability check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, attendanceListResponse{
		Marks:    toAttendanceDTOs(marks),
		Editable: editable,
	})
}

type setAttendanceRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type attendanceListResponse struct {
	Marks    []attendanceDTO `json:"marks"`
	Editable bool            `json:"editable"`
}

type attendanceDTO struct {
	ParticipantID string `json:"participant_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	MarkedAt      string `json:"marked_at,omitempty"`
}

func toAttendanceDTOs(marks []application.AttendanceMark) []attendanceDTO {
	if len(marks) == 0 {
		return nil
	}
	out := make([]attendanceDTO, 0, len(marks))
	for _, mark := range marks {
		dto := attendanceDTO{
			ParticipantID: mark.ParticipantID,
			Status:        string(mark.Status),
			Reason:        mark.Reason,
		}
		if !mark.MarkedAt.IsZero() {
			dto.MarkedAt = mark.MarkedAt.UTC().Format(time.RFC3339Nano)
		}
		out = append(out, dto)
	}
	return out
}
