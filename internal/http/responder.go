package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/ritual-engine/internal/application"
)

var (
	errBadRequestBody        = errors.New("無効なリクエスト形式です。")
	errInvalidSessionPath    = errors.New("無効なセッションパスです。日付と種別を指定してください。")
	errInvalidParticipantID  = errors.New("無効な参加者 ID です。")
	errInvalidLearningPoint  = errors.New("無効な学習ポイント ID です。")
	errMissingSessionToken   = errors.New("認証トークンを指定してください")
	errUnknownStreakType     = errors.New("ストリーク対象のセッション種別を指定してください。")
	errMalformedTodayParam   = errors.New("today パラメータは YYYY-MM-DD 形式で指定してください。")
	errMissingScheduleTarget = errors.New("開始日時を指定してください。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SESSION_ALREADY_SCHEDULED",
			Message:   "指定された日付と種別のセッションは既に存在します。",
		})
	case errors.Is(err, application.ErrIllegalTransition):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SESSION_ILLEGAL_TRANSITION",
			Message:   "セッションの現在の状態ではこの操作は実行できません。",
		})
	case errors.Is(err, application.ErrConcurrentTransition):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SESSION_TRANSITION_IN_PROGRESS",
			Message:   "別の状態遷移が進行中です。しばらくしてから再試行してください。",
		})
	case errors.Is(err, application.ErrSessionNotActive):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SESSION_NOT_ACTIVE",
			Message:   "セッションが開始されていないため出欠を編集できません。",
		})
	case errors.Is(err, application.ErrSessionLocked):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SESSION_LOCKED",
			Message:   "終了したセッションの記録は編集できません。",
		})
	case errors.Is(err, application.ErrMissingReason):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "ATTENDANCE_REASON_REQUIRED",
			Message:   "NotAvailable を選択した場合は理由を入力してください。",
		})
	case errors.Is(err, application.ErrInvalidSchedule):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "SESSION_INVALID_SCHEDULE",
			Message:   "過去の日時にはセッションを予定できません。",
		})
	case errors.Is(err, application.ErrCommitFailed):
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: "ROSTER_COMMIT_FAILED",
			Message:   "出欠の確定に失敗しました。セッションは継続中です。再試行してください。",
		})
	case errors.Is(err, application.ErrInvalidCredentials),
		errors.Is(err, application.ErrSessionExpired),
		errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Message: "認証が必要です。"})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			details := localizeValidationErrors(vErr)
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "入力内容に誤りがあります。",
				Errors:  details,
			})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "day must be a date in 2006-01-02 form":
		return "日付は YYYY-MM-DD 形式で指定してください。"
	case "unknown session type":
		return "セッション種別は standup または learning_hour を指定してください。"
	case "unknown attendance status":
		return "出欠ステータスの値が不正です。"
	case "participant is required":
		return "参加者は必須です。"
	case "content is required":
		return "内容は必須です。"
	case "email is required":
		return "メールアドレスは必須です。"
	case "email is invalid":
		return "メールアドレスの形式が不正です。"
	case "display name is required":
		return "表示名は必須です。"
	case "password is required":
		return "パスワードは必須です。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
