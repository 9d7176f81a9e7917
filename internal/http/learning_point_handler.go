package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/ritual-engine/internal/application"
)

type learningPointService interface {
	CreateLearningPoint(ctx context.Context, params application.CreateLearningPointParams) (application.LearningPoint, error)
	UpdateLearningPoint(ctx context.Context, params application.UpdateLearningPointParams) (application.LearningPoint, error)
	DeleteLearningPoint(ctx context.Context, principal application.Principal, pointID string) error
	ListLearningPoints(ctx context.Context, day string, sessionType application.SessionType) ([]application.LearningPoint, error)
}

type LearningPointHandler struct {
	service   learningPointService
	responder responder
	logger    *slog.Logger
}

func NewLearningPointHandler(service learningPointService, logger *slog.Logger) *LearningPointHandler {
	base := defaultLogger(logger)
	return &LearningPointHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *LearningPointHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "LearningPointHandler", operation, attrs...)
}

// Create records a learning point against an unlocked session. The author is
// always the authenticated principal.
func (h *LearningPointHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req learningPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode learning point request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.ParticipantID, "day", ref.Day, "type", ref.Type)

	point, err := h.service.CreateLearningPoint(r.Context(), application.CreateLearningPointParams{
		Principal: principal,
		Input: application.LearningPointInput{
			Day:     ref.Day,
			Type:    ref.Type,
			Content: req.Content,
		},
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "learning point creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("point_id", point.ID).InfoContext(r.Context(), "learning point created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, learningPointResponse{Point: toLearningPointDTO(point)})
}

// Update edits an existing learning point. Authors may edit their own notes;
// administrators may edit anyone's.
func (h *LearningPointHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	pointID, ok := PointIDFromContext(r.Context())
	if !ok || pointID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLearningPoint)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req learningPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode learning point request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.ParticipantID, "point_id", pointID)

	point, err := h.service.UpdateLearningPoint(r.Context(), application.UpdateLearningPointParams{
		Principal: principal,
		PointID:   pointID,
		Content:   req.Content,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "learning point update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "learning point updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, learningPointResponse{Point: toLearningPointDTO(point)})
}

// Delete removes a learning point under the same ownership rules as Update.
func (h *LearningPointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	pointID, ok := PointIDFromContext(r.Context())
	if !ok || pointID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLearningPoint)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.ParticipantID, "point_id", pointID)

	if err := h.service.DeleteLearningPoint(r.Context(), principal, pointID); err != nil {
		logger.ErrorContext(r.Context(), "learning point deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "learning point deleted")
	w.WriteHeader(http.StatusNoContent)
}

// List returns a session's learning points with the live editability flag.
func (h *LearningPointHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ref, ok := SessionRefFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionPath)
		return
	}

	logger := h.log(r.Context(), "List", "day", ref.Day, "type", ref.Type)

	points, err := h.service.ListLearningPoints(r.Context(), ref.Day, ref.Type)
	if err != nil {
		logger.ErrorContext(r.Context(), "learning point list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(points)).InfoContext(r.Context(), "learning points listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listLearningPointsResponse{Points: toLearningPointDTOs(points)})
}

type learningPointRequest struct {
	Content string `json:"content"`
}

type learningPointResponse struct {
	Point learningPointDTO `json:"learning_point"`
}

type listLearningPointsResponse struct {
	Points []learningPointDTO `json:"learning_points"`
}

type learningPointDTO struct {
	ID            string `json:"id"`
	Day           string `json:"day"`
	Type          string `json:"type"`
	ParticipantID string `json:"participant_id"`
	Content       string `json:"content"`
	Editable      bool   `json:"editable"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toLearningPointDTO(point application.LearningPoint) learningPointDTO {
	return learningPointDTO{
		ID:            point.ID,
		Day:           point.Day,
		Type:          string(point.Type),
		ParticipantID: point.ParticipantID,
		Content:       point.Content,
		Editable:      point.Editable,
		CreatedAt:     point.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:     point.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toLearningPointDTOs(points []application.LearningPoint) []learningPointDTO {
	if len(points) == 0 {
		return nil
	}
	out := make([]learningPointDTO, 0, len(points))
	for _, point := range points {
		out = append(out, toLearningPointDTO(point))
	}
	return out
}
