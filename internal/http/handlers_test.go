package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/ritual-engine/internal/application"
)

var adminPrincipal = application.Principal{ParticipantID: "admin-1", IsAdmin: true}

func principalMiddleware(principal application.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

type authServiceStub struct {
	result        application.AuthenticateResult
	authErr       error
	revokeErr     error
	revokedTokens []string
}

func (s *authServiceStub) Authenticate(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	if s.authErr != nil {
		return application.AuthenticateResult{}, s.authErr
	}
	return s.result, nil
}

func (s *authServiceStub) RevokeSession(_ context.Context, token string) error {
	if s.revokeErr != nil {
		return s.revokeErr
	}
	s.revokedTokens = append(s.revokedTokens, token)
	return nil
}

func TestAuthHandlerLogin(t *testing.T) {
	t.Parallel()

	expires := time.Date(2026, time.March, 2, 18, 0, 0, 0, time.UTC)

	t.Run("issues token header cookie and body", func(t *testing.T) {
		t.Parallel()

		stub := &authServiceStub{result: application.AuthenticateResult{
			Participant: application.Participant{ID: "p-1", IsAdmin: true},
			Session:     application.AuthSession{Token: "tok-123", ExpiresAt: expires},
		}}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(stub, nil)})

		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"Admin@Example.com","password":"secret"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		if got := rec.Header().Get("X-Session-Token"); got != "tok-123" {
			t.Fatalf("expected token header, got %q", got)
		}

		var foundCookie bool
		for _, cookie := range rec.Result().Cookies() {
			if cookie.Name == "session_token" && cookie.Value == "tok-123" {
				foundCookie = true
			}
		}
		if !foundCookie {
			t.Fatal("expected session_token cookie to be set")
		}

		var resp loginResponse
		decodeBody(t, rec, &resp)
		if resp.Token != "tok-123" {
			t.Fatalf("expected token in body, got %q", resp.Token)
		}
		if resp.Principal.ParticipantID != "p-1" || !resp.Principal.IsAdmin {
			t.Fatalf("unexpected principal: %+v", resp.Principal)
		}
	})

	t.Run("rejects invalid credentials", func(t *testing.T) {
		t.Parallel()

		stub := &authServiceStub{authErr: application.ErrInvalidCredentials}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(stub, nil)})

		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@example.com","password":"nope"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
			t.Fatalf("unexpected error code %q", resp.ErrorCode)
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Auth: NewAuthHandler(&authServiceStub{}, nil)})
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAuthHandlerLogout(t *testing.T) {
	t.Parallel()

	t.Run("revokes the bearer token", func(t *testing.T) {
		t.Parallel()

		stub := &authServiceStub{}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(stub, nil)})

		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.Header.Set("Authorization", "Bearer tok-999")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if len(stub.revokedTokens) != 1 || stub.revokedTokens[0] != "tok-999" {
			t.Fatalf("expected token revocation, got %v", stub.revokedTokens)
		}

		var cleared bool
		for _, cookie := range rec.Result().Cookies() {
			if cookie.Name == "session_token" && cookie.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Fatal("expected session cookie to be cleared")
		}
	})

	t.Run("rejects requests without a token", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Auth: NewAuthHandler(&authServiceStub{}, nil)})
		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

type sessionServiceStub struct {
	session     application.Session
	sessions    []application.Session
	err         error
	lastFilter  application.SessionListFilter
	transitions []string
}

func (s *sessionServiceStub) Schedule(_ context.Context, params application.ScheduleSessionParams) (application.Session, error) {
	if s.err != nil {
		return application.Session{}, s.err
	}
	return s.session, nil
}

func (s *sessionServiceStub) Reschedule(_ context.Context, params application.RescheduleSessionParams) (application.Session, error) {
	if s.err != nil {
		return application.Session{}, s.err
	}
	return s.session, nil
}

func (s *sessionServiceStub) Activate(_ context.Context, params application.TransitionParams) (application.Session, error) {
	s.transitions = append(s.transitions, "activate:"+params.Day+"/"+string(params.Type))
	if s.err != nil {
		return application.Session{}, s.err
	}
	return s.session, nil
}

func (s *sessionServiceStub) Terminate(_ context.Context, params application.TransitionParams) (application.Session, error) {
	s.transitions = append(s.transitions, "terminate:"+params.Day+"/"+string(params.Type))
	if s.err != nil {
		return application.Session{}, s.err
	}
	return s.session, nil
}

func (s *sessionServiceStub) MarkSynced(_ context.Context, params application.TransitionParams) (application.Session, error) {
	s.transitions = append(s.transitions, "sync:"+params.Day+"/"+string(params.Type))
	if s.err != nil {
		return application.Session{}, s.err
	}
	return s.session, nil
}

func (s *sessionServiceStub) Get(_ context.Context, day string, sessionType application.SessionType) (application.Session, error) {
	if s.err != nil {
		return application.Session{}, s.err
	}
	return s.session, nil
}

func (s *sessionServiceStub) List(_ context.Context, filter application.SessionListFilter) ([]application.Session, error) {
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.sessions, nil
}

func newSessionRouter(stub *sessionServiceStub) http.Handler {
	return NewRouter(RouterConfig{
		Sessions:   NewSessionHandler(stub, nil),
		Middleware: []func(http.Handler) http.Handler{principalMiddleware(adminPrincipal)},
	})
}

func TestSessionRoutes(t *testing.T) {
	t.Parallel()

	scheduledAt := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	scheduled := application.Session{
		Day:         "2026-03-02",
		Type:        application.SessionTypeStandup,
		Status:      application.SessionScheduled,
		ScheduledAt: scheduledAt,
		CreatedBy:   "admin-1",
	}

	t.Run("schedule creates a session", func(t *testing.T) {
		t.Parallel()

		stub := &sessionServiceStub{session: scheduled}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sessions",
			strings.NewReader(`{"day":"2026-03-02","type":"standup","scheduled_at":"2026-03-02T09:30:00Z"}`))
		newSessionRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		var resp sessionResponse
		decodeBody(t, rec, &resp)
		if resp.Session.Day != "2026-03-02" || resp.Session.Status != "scheduled" {
			t.Fatalf("unexpected session payload: %+v", resp.Session)
		}
	})

	t.Run("schedule rejects malformed timestamps", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sessions",
			strings.NewReader(`{"day":"2026-03-02","type":"standup","scheduled_at":"tomorrow"}`))
		newSessionRouter(&sessionServiceStub{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("duplicate schedule maps to conflict", func(t *testing.T) {
		t.Parallel()

		stub := &sessionServiceStub{err: application.ErrAlreadyExists}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sessions",
			strings.NewReader(`{"day":"2026-03-02","type":"standup","scheduled_at":"2026-03-02T09:30:00Z"}`))
		newSessionRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "SESSION_ALREADY_SCHEDULED" {
			t.Fatalf("unexpected error code %q", resp.ErrorCode)
		}
	})

	t.Run("transitions route to the matching operation", func(t *testing.T) {
		t.Parallel()

		for _, action := range []string{"activate", "terminate", "sync"} {
			stub := &sessionServiceStub{session: scheduled}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/sessions/2026-03-02/standup/"+action, nil)
			newSessionRouter(stub).ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("%s: expected 200, got %d (%s)", action, rec.Code, rec.Body.String())
			}
			want := action + ":2026-03-02/standup"
			if len(stub.transitions) != 1 || stub.transitions[0] != want {
				t.Fatalf("%s: expected transition %q, got %v", action, want, stub.transitions)
			}
		}
	})

	t.Run("concurrent transition maps to conflict", func(t *testing.T) {
		t.Parallel()

		stub := &sessionServiceStub{err: application.ErrConcurrentTransition}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sessions/2026-03-02/standup/activate", nil)
		newSessionRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "SESSION_TRANSITION_IN_PROGRESS" {
			t.Fatalf("unexpected error code %q", resp.ErrorCode)
		}
	})

	t.Run("commit failure maps to internal error with retry hint", func(t *testing.T) {
		t.Parallel()

		stub := &sessionServiceStub{err: application.ErrCommitFailed}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sessions/2026-03-02/standup/terminate", nil)
		newSessionRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "ROSTER_COMMIT_FAILED" {
			t.Fatalf("unexpected error code %q", resp.ErrorCode)
		}
	})

	t.Run("list forwards query filters", func(t *testing.T) {
		t.Parallel()

		stub := &sessionServiceStub{sessions: []application.Session{scheduled}}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions?type=standup&status=scheduled&from=2026-03-01&until=2026-03-31", nil)
		newSessionRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.lastFilter.Type != application.SessionTypeStandup || stub.lastFilter.Status != application.SessionScheduled {
			t.Fatalf("unexpected filter: %+v", stub.lastFilter)
		}
		if stub.lastFilter.DayFrom != "2026-03-01" || stub.lastFilter.DayUntil != "2026-03-31" {
			t.Fatalf("unexpected day range: %+v", stub.lastFilter)
		}
	})

	t.Run("incomplete session path is rejected", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/2026-03-02", nil)
		newSessionRouter(&sessionServiceStub{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown method is rejected with allow header", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/sessions", nil)
		newSessionRouter(&sessionServiceStub{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
		if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
			t.Fatalf("expected Allow header to include POST, got %q", allow)
		}
	})
}

type attendanceServiceStub struct {
	marks      []application.AttendanceMark
	editable   bool
	setErr     error
	listErr    error
	lastParams application.TentativeStatusParams
}

func (s *attendanceServiceStub) SetTentativeStatus(_ context.Context, params application.TentativeStatusParams) error {
	s.lastParams = params
	return s.setErr
}

func (s *attendanceServiceStub) WorkingSet(_ context.Context, _ application.Principal, _ string, _ application.SessionType) ([]application.AttendanceMark, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.marks, nil
}

func (s *attendanceServiceStub) Roster(_ context.Context, _ string, _ application.SessionType) ([]application.AttendanceMark, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.marks, nil
}

func (s *attendanceServiceStub) IsEditable(_ context.Context, _ string, _ application.SessionType) (bool, error) {
	return s.editable, nil
}

func newAttendanceRouter(stub *attendanceServiceStub) http.Handler {
	return NewRouter(RouterConfig{
		Attendance: NewAttendanceHandler(stub, nil),
		Sessions:   NewSessionHandler(&sessionServiceStub{}, nil),
		Middleware: []func(http.Handler) http.Handler{principalMiddleware(adminPrincipal)},
	})
}

func TestAttendanceRoutes(t *testing.T) {
	t.Parallel()

	t.Run("set status buffers the edit", func(t *testing.T) {
		t.Parallel()

		stub := &attendanceServiceStub{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/sessions/2026-03-02/standup/attendance/p-7",
			strings.NewReader(`{"status":"NotAvailable","reason":"通院のため"}`))
		newAttendanceRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d (%s)", rec.Code, rec.Body.String())
		}
		if stub.lastParams.ParticipantID != "p-7" {
			t.Fatalf("expected participant p-7, got %q", stub.lastParams.ParticipantID)
		}
		if stub.lastParams.Status != application.AttendanceNotAvailable || stub.lastParams.Reason != "通院のため" {
			t.Fatalf("unexpected params: %+v", stub.lastParams)
		}
		if stub.lastParams.Day != "2026-03-02" || stub.lastParams.Type != application.SessionTypeStandup {
			t.Fatalf("unexpected session key: %+v", stub.lastParams)
		}
	})

	t.Run("missing reason maps to unprocessable entity", func(t *testing.T) {
		t.Parallel()

		stub := &attendanceServiceStub{setErr: application.ErrMissingReason}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/sessions/2026-03-02/standup/attendance/p-7",
			strings.NewReader(`{"status":"NotAvailable"}`))
		newAttendanceRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "ATTENDANCE_REASON_REQUIRED" {
			t.Fatalf("unexpected error code %q", resp.ErrorCode)
		}
	})

	t.Run("inactive session maps to conflict", func(t *testing.T) {
		t.Parallel()

		stub := &attendanceServiceStub{setErr: application.ErrSessionNotActive}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/sessions/2026-03-02/standup/attendance/p-7",
			strings.NewReader(`{"status":"Present"}`))
		newAttendanceRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("working set includes the editability flag", func(t *testing.T) {
		t.Parallel()

		stub := &attendanceServiceStub{
			editable: true,
			marks: []application.AttendanceMark{
				{ParticipantID: "p-1", Status: application.AttendancePresent},
				{ParticipantID: "p-2", Status: application.AttendanceNotAvailable, Reason: "出張"},
			},
		}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/2026-03-02/standup/attendance", nil)
		newAttendanceRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp attendanceListResponse
		decodeBody(t, rec, &resp)
		if !resp.Editable {
			t.Fatal("expected editable working set")
		}
		if len(resp.Marks) != 2 || resp.Marks[1].Reason != "出張" {
			t.Fatalf("unexpected marks: %+v", resp.Marks)
		}
	})

	t.Run("roster reflects committed marks", func(t *testing.T) {
		t.Parallel()

		markedAt := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
		stub := &attendanceServiceStub{
			marks: []application.AttendanceMark{
				{ParticipantID: "p-1", Status: application.AttendanceMissed, MarkedAt: markedAt},
			},
		}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/2026-03-02/standup/roster", nil)
		newAttendanceRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp attendanceListResponse
		decodeBody(t, rec, &resp)
		if resp.Editable {
			t.Fatal("expected locked roster")
		}
		if len(resp.Marks) != 1 || resp.Marks[0].Status != "Missed" || resp.Marks[0].MarkedAt == "" {
			t.Fatalf("unexpected marks: %+v", resp.Marks)
		}
	})
}

type streakServiceStub struct {
	count      int
	err        error
	lastParams application.ComputeStreakParams
}

func (s *streakServiceStub) ComputeStreak(_ context.Context, params application.ComputeStreakParams) (int, error) {
	s.lastParams = params
	if s.err != nil {
		return 0, s.err
	}
	return s.count, nil
}

func newStreakRouter(stub *streakServiceStub) http.Handler {
	return NewRouter(RouterConfig{
		Participants: NewParticipantHandler(&participantServiceStub{}, nil),
		Streaks:      NewStreakHandler(stub, nil),
		Middleware:   []func(http.Handler) http.Handler{principalMiddleware(adminPrincipal)},
	})
}

func TestStreakRoute(t *testing.T) {
	t.Parallel()

	t.Run("returns the computed streak", func(t *testing.T) {
		t.Parallel()

		stub := &streakServiceStub{count: 5}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/participants/p-3/streak?type=standup&today=2026-03-07", nil)
		newStreakRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		var resp streakResponse
		decodeBody(t, rec, &resp)
		if resp.Streak != 5 || resp.ParticipantID != "p-3" || resp.Type != "standup" {
			t.Fatalf("unexpected response: %+v", resp)
		}
		wantToday := time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC)
		if !stub.lastParams.Today.Equal(wantToday) {
			t.Fatalf("expected today %v, got %v", wantToday, stub.lastParams.Today)
		}
	})

	t.Run("missing type is rejected", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/participants/p-3/streak", nil)
		newStreakRouter(&streakServiceStub{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("malformed today is rejected", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/participants/p-3/streak?type=standup&today=03-07-2026", nil)
		newStreakRouter(&streakServiceStub{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("omitted today defaults inside the service", func(t *testing.T) {
		t.Parallel()

		stub := &streakServiceStub{count: 2}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/participants/p-3/streak?type=learning_hour", nil)
		newStreakRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !stub.lastParams.Today.IsZero() {
			t.Fatalf("expected zero today, got %v", stub.lastParams.Today)
		}
	})
}

type participantServiceStub struct {
	participant  application.Participant
	participants []application.Participant
	err          error
	deletedIDs   []string
}

func (s *participantServiceStub) CreateParticipant(_ context.Context, params application.CreateParticipantParams) (application.Participant, error) {
	if s.err != nil {
		return application.Participant{}, s.err
	}
	return s.participant, nil
}

func (s *participantServiceStub) UpdateParticipant(_ context.Context, params application.UpdateParticipantParams) (application.Participant, error) {
	if s.err != nil {
		return application.Participant{}, s.err
	}
	return s.participant, nil
}

func (s *participantServiceStub) DeleteParticipant(_ context.Context, _ application.Principal, participantID string) error {
	if s.err != nil {
		return s.err
	}
	s.deletedIDs = append(s.deletedIDs, participantID)
	return nil
}

func (s *participantServiceStub) GetParticipant(_ context.Context, _ application.Principal, participantID string) (application.Participant, error) {
	if s.err != nil {
		return application.Participant{}, s.err
	}
	return s.participant, nil
}

func (s *participantServiceStub) ListParticipants(_ context.Context, _ application.Principal) ([]application.Participant, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.participants, nil
}

func newParticipantRouter(stub *participantServiceStub) http.Handler {
	return NewRouter(RouterConfig{
		Participants: NewParticipantHandler(stub, nil),
		Middleware:   []func(http.Handler) http.Handler{principalMiddleware(adminPrincipal)},
	})
}

func TestParticipantRoutes(t *testing.T) {
	t.Parallel()

	member := application.Participant{
		ID:          "p-1",
		Email:       "dev@example.com",
		DisplayName: "Dev One",
		CreatedAt:   time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC),
	}

	t.Run("create returns the persisted participant", func(t *testing.T) {
		t.Parallel()

		stub := &participantServiceStub{participant: member}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/participants",
			strings.NewReader(`{"email":"dev@example.com","display_name":"Dev One","password":"secret"}`))
		newParticipantRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		var resp participantResponse
		decodeBody(t, rec, &resp)
		if resp.Participant.ID != "p-1" || resp.Participant.Email != "dev@example.com" {
			t.Fatalf("unexpected participant: %+v", resp.Participant)
		}
	})

	t.Run("validation failures are localized", func(t *testing.T) {
		t.Parallel()

		vErr := &application.ValidationError{FieldErrors: map[string]string{
			"email":    "email is required",
			"password": "password is required",
		}}
		stub := &participantServiceStub{err: vErr}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/participants", strings.NewReader(`{}`))
		newParticipantRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.Errors["email"] != "メールアドレスは必須です。" {
			t.Fatalf("unexpected email message %q", resp.Errors["email"])
		}
		if resp.Errors["password"] != "パスワードは必須です。" {
			t.Fatalf("unexpected password message %q", resp.Errors["password"])
		}
	})

	t.Run("forbidden mutation maps to 403", func(t *testing.T) {
		t.Parallel()

		stub := &participantServiceStub{err: application.ErrUnauthorized}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/participants/p-1", nil)
		newParticipantRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "AUTH_FORBIDDEN" {
			t.Fatalf("unexpected error code %q", resp.ErrorCode)
		}
	})

	t.Run("delete forwards the path id", func(t *testing.T) {
		t.Parallel()

		stub := &participantServiceStub{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/participants/p-9", nil)
		newParticipantRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if len(stub.deletedIDs) != 1 || stub.deletedIDs[0] != "p-9" {
			t.Fatalf("unexpected deletions: %v", stub.deletedIDs)
		}
	})

	t.Run("list returns the directory", func(t *testing.T) {
		t.Parallel()

		stub := &participantServiceStub{participants: []application.Participant{member}}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/participants", nil)
		newParticipantRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp listParticipantsResponse
		decodeBody(t, rec, &resp)
		if len(resp.Participants) != 1 || resp.Participants[0].ID != "p-1" {
			t.Fatalf("unexpected participants: %+v", resp.Participants)
		}
	})

	t.Run("missing participant maps to 404", func(t *testing.T) {
		t.Parallel()

		stub := &participantServiceStub{err: application.ErrNotFound}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/participants/p-404", nil)
		newParticipantRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

type learningPointServiceStub struct {
	point      application.LearningPoint
	points     []application.LearningPoint
	err        error
	deletedIDs []string
}

func (s *learningPointServiceStub) CreateLearningPoint(_ context.Context, params application.CreateLearningPointParams) (application.LearningPoint, error) {
	if s.err != nil {
		return application.LearningPoint{}, s.err
	}
	return s.point, nil
}

func (s *learningPointServiceStub) UpdateLearningPoint(_ context.Context, params application.UpdateLearningPointParams) (application.LearningPoint, error) {
	if s.err != nil {
		return application.LearningPoint{}, s.err
	}
	return s.point, nil
}

func (s *learningPointServiceStub) DeleteLearningPoint(_ context.Context, _ application.Principal, pointID string) error {
	if s.err != nil {
		return s.err
	}
	s.deletedIDs = append(s.deletedIDs, pointID)
	return nil
}

func (s *learningPointServiceStub) ListLearningPoints(_ context.Context, _ string, _ application.SessionType) ([]application.LearningPoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.points, nil
}

func newLearningPointRouter(stub *learningPointServiceStub) http.Handler {
	return NewRouter(RouterConfig{
		Sessions:       NewSessionHandler(&sessionServiceStub{}, nil),
		LearningPoints: NewLearningPointHandler(stub, nil),
		Middleware:     []func(http.Handler) http.Handler{principalMiddleware(adminPrincipal)},
	})
}

func TestLearningPointRoutes(t *testing.T) {
	t.Parallel()

	point := application.LearningPoint{
		ID:            "lp-1",
		Day:           "2026-03-02",
		Type:          application.SessionTypeLearningHour,
		ParticipantID: "admin-1",
		Content:       "context cancellation patterns",
		Editable:      true,
		CreatedAt:     time.Date(2026, time.March, 2, 15, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, time.March, 2, 15, 0, 0, 0, time.UTC),
	}

	t.Run("create records a note against the session", func(t *testing.T) {
		t.Parallel()

		stub := &learningPointServiceStub{point: point}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sessions/2026-03-02/learning_hour/learning-points",
			strings.NewReader(`{"content":"context cancellation patterns"}`))
		newLearningPointRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		var resp learningPointResponse
		decodeBody(t, rec, &resp)
		if resp.Point.ID != "lp-1" || !resp.Point.Editable {
			t.Fatalf("unexpected point: %+v", resp.Point)
		}
	})

	t.Run("locked session maps to conflict", func(t *testing.T) {
		t.Parallel()

		stub := &learningPointServiceStub{err: application.ErrSessionLocked}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/learning-points/lp-1",
			strings.NewReader(`{"content":"revised"}`))
		newLearningPointRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "SESSION_LOCKED" {
			t.Fatalf("unexpected error code %q", resp.ErrorCode)
		}
	})

	t.Run("delete forwards the path id", func(t *testing.T) {
		t.Parallel()

		stub := &learningPointServiceStub{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/learning-points/lp-2", nil)
		newLearningPointRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if len(stub.deletedIDs) != 1 || stub.deletedIDs[0] != "lp-2" {
			t.Fatalf("unexpected deletions: %v", stub.deletedIDs)
		}
	})

	t.Run("list returns session notes", func(t *testing.T) {
		t.Parallel()

		stub := &learningPointServiceStub{points: []application.LearningPoint{point}}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/2026-03-02/learning_hour/learning-points", nil)
		newLearningPointRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp listLearningPointsResponse
		decodeBody(t, rec, &resp)
		if len(resp.Points) != 1 || resp.Points[0].Content != "context cancellation patterns" {
			t.Fatalf("unexpected points: %+v", resp.Points)
		}
	})

	t.Run("unexpected failures map to 500", func(t *testing.T) {
		t.Parallel()

		stub := &learningPointServiceStub{err: errors.New("storage offline")}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/2026-03-02/learning_hour/learning-points", nil)
		newLearningPointRouter(stub).ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}
