package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/ritual-engine/internal/application"
)

type sessionService interface {
	Schedule(ctx context.Context, params application.ScheduleSessionParams) (application.Session, error)
	Reschedule(ctx context.Context, params application.RescheduleSessionParams) (application.Session, error)
	Activate(ctx context.Context, params application.TransitionParams) (application.Session, error)
	Terminate(ctx context.Context, params application.TransitionParams) (application.Session, error)
	MarkSynced(ctx context.Context, params application.TransitionParams) (application.Session, error)
	Get(ctx context.Context, day string, sessionType application.SessionType) (application.Session, error)
	List(ctx context.Context, filter application.SessionListFilter) ([]application.Session, error)
}

type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

// Schedule creates the session record for a (day, type) pair.
func (h *SessionHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req scheduleSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Schedule", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode session request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	at, err := parseTimestamp(req.ScheduledAt)
	if err != nil {
		h.log(r.Context(), "Schedule", "error_kind", "bad_request").ErrorContext(r.Context(), "malformed scheduled_at", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingScheduleTarget)
		return
	}

	logger := h.log(r.Context(), "Schedule", "principal_id", principal.ParticipantID, "day", req.Day, "type", req.Type)

	session, err := h.service.Schedule(r.Context(), application.ScheduleSessionParams{
		Principal: principal,
		Day:       req.Day,
		Type:      application.SessionType(req.Type),
		At:        at,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session scheduling failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session scheduled")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{Session: toSessionDTO(session)})
}

// Reschedule moves a scheduled session's start time.
func (h *SessionHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
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

	var req rescheduleSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Reschedule", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reschedule request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	at, err := parseTimestamp(req.ScheduledAt)
	if err != nil {
		h.log(r.Context(), "Reschedule", "error_kind", "bad_request").ErrorContext(r.Context(), "malformed scheduled_at", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingScheduleTarget)
		return
	}

	logger := h.log(r.Context(), "Reschedule", "principal_id", principal.ParticipantID, "day", ref.Day, "type", ref.Type)

	session, err := h.service.Reschedule(r.Context(), application.RescheduleSessionParams{
		Principal: principal,
		Day:       ref.Day,
		Type:      ref.Type,
		At:        at,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session reschedule failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session rescheduled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// Activate opens the session's attendance window.
func (h *SessionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Activate", h.serviceActivate)
}

// Terminate commits the roster and ends the session.
func (h *SessionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Terminate", h.serviceTerminate)
}

// MarkSynced records a completed export for an ended session.
func (h *SessionHandler) MarkSynced(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "MarkSynced", h.serviceMarkSynced)
}

func (h *SessionHandler) serviceActivate(ctx context.Context, params application.TransitionParams) (application.Session, error) {
	return h.service.Activate(ctx, params)
}

func (h *SessionHandler) serviceTerminate(ctx context.Context, params application.TransitionParams) (application.Session, error) {
	return h.service.Terminate(ctx, params)
}

func (h *SessionHandler) serviceMarkSynced(ctx context.Context, params application.TransitionParams) (application.Session, error) {
	return h.service.MarkSynced(ctx, params)
}

func (h *SessionHandler) transition(w http.ResponseWriter, r *http.Request, operation string, call func(context.Context, application.TransitionParams) (application.Session, error)) {
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
	logger := h.log(r.Context(), operation, "principal_id", principal.ParticipantID, "day", ref.Day, "type", ref.Type)

	session, err := call(r.Context(), application.TransitionParams{
		Principal: principal,
		Day:       ref.Day,
		Type:      ref.Type,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session transition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", session.Status).InfoContext(r.Context(), "session transitioned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// Get returns one session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ref, ok := SessionRefFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionPath)
		return
	}

	session, err := h.service.Get(r.Context(), ref.Day, ref.Type)
	if err != nil {
		h.log(r.Context(), "Get", "day", ref.Day, "type", ref.Type).ErrorContext(r.Context(), "session fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// List enumerates sessions, optionally narrowed by type, status, and day range.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	filter := application.SessionListFilter{
		Type:     application.SessionType(strings.TrimSpace(query.Get("type"))),
		Status:   application.SessionStatus(strings.TrimSpace(query.Get("status"))),
		DayFrom:  strings.TrimSpace(query.Get("from")),
		DayUntil: strings.TrimSpace(query.Get("until")),
	}

	logger := h.log(r.Context(), "List")

	sessions, err := h.service.List(r.Context(), filter)
	if err != nil {
		logger.ErrorContext(r.Context(), "session list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(sessions)).InfoContext(r.Context(), "sessions listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: toSessionDTOs(sessions)})
}

type scheduleSessionRequest struct {
	Day         string `json:"day"`
	Type        string `json:"type"`
	ScheduledAt string `json:"scheduled_at"`
}

type rescheduleSessionRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type listSessionsResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}

type sessionDTO struct {
	Day         string `json:"day"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	ScheduledAt string `json:"scheduled_at"`
	StartedAt   string `json:"started_at,omitempty"`
	EndedAt     string `json:"ended_at,omitempty"`
	Synced      bool   `json:"synced"`
	CreatedBy   string `json:"created_by,omitempty"`
}

func toSessionDTO(session application.Session) sessionDTO {
	dto := sessionDTO{
		Day:         session.Day,
		Type:        string(session.Type),
		Status:      string(session.Status),
		ScheduledAt: session.ScheduledAt.UTC().Format(time.RFC3339Nano),
		Synced:      session.Synced,
		CreatedBy:   session.CreatedBy,
	}
	if session.StartedAt != nil {
		dto.StartedAt = session.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	if session.EndedAt != nil {
		dto.EndedAt = session.EndedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}

func toSessionDTOs(sessions []application.Session) []sessionDTO {
	if len(sessions) == 0 {
		return nil
	}
	out := make([]sessionDTO, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, toSessionDTO(session))
	}
	return out
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(value))
}
