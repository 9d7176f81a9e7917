package http

import (
	"net/http"
	"strings"

	"github.com/example/ritual-engine/internal/application"
)

type RouterConfig struct {
	Auth           *AuthHandler
	Participants   *ParticipantHandler
	Sessions       *SessionHandler
	Attendance     *AttendanceHandler
	Streaks        *StreakHandler
	LearningPoints *LearningPointHandler
	Middleware     []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Auth != nil {
		mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Login(w, r)
		})
		mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Logout(w, r)
		})
	}

	if cfg.Participants != nil {
		mux.HandleFunc("/participants", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Participants.List(w, r)
			case http.MethodPost:
				cfg.Participants.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/participants/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/participants/")
			parts := splitPath(rest)
			if len(parts) == 0 {
				http.NotFound(w, r)
				return
			}

			r = r.WithContext(ContextWithParticipantID(r.Context(), parts[0]))

			switch {
			case len(parts) == 1:
				switch r.Method {
				case http.MethodGet:
					cfg.Participants.Get(w, r)
				case http.MethodPut:
					cfg.Participants.Update(w, r)
				case http.MethodDelete:
					cfg.Participants.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
				}
			case len(parts) == 2 && parts[1] == "streak" && cfg.Streaks != nil:
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Streaks.Get(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Sessions != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Sessions.List(w, r)
			case http.MethodPost:
				cfg.Sessions.Schedule(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
			parts := splitPath(rest)
			if len(parts) < 2 {
				responder := newResponder(nil)
				responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionPath)
				return
			}

			ref := SessionRef{Day: parts[0], Type: application.SessionType(parts[1])}
			r = r.WithContext(ContextWithSessionRef(r.Context(), ref))

			switch {
			case len(parts) == 2:
				switch r.Method {
				case http.MethodGet:
					cfg.Sessions.Get(w, r)
				case http.MethodPut:
					cfg.Sessions.Reschedule(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPut)
				}
			case len(parts) == 3 && parts[2] == "activate":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Sessions.Activate(w, r)
			case len(parts) == 3 && parts[2] == "terminate":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Sessions.Terminate(w, r)
			case len(parts) == 3 && parts[2] == "sync":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Sessions.MarkSynced(w, r)
			case len(parts) == 3 && parts[2] == "roster" && cfg.Attendance != nil:
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Attendance.Roster(w, r)
			case len(parts) == 3 && parts[2] == "attendance" && cfg.Attendance != nil:
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Attendance.WorkingSet(w, r)
			case len(parts) == 4 && parts[2] == "attendance" && cfg.Attendance != nil:
				if r.Method != http.MethodPut {
					methodNotAllowed(w, http.MethodPut)
					return
				}
				r = r.WithContext(ContextWithParticipantID(r.Context(), parts[3]))
				cfg.Attendance.SetStatus(w, r)
			case len(parts) == 3 && parts[2] == "learning-points" && cfg.LearningPoints != nil:
				switch r.Method {
				case http.MethodGet:
					cfg.LearningPoints.List(w, r)
				case http.MethodPost:
					cfg.LearningPoints.Create(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPost)
				}
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.LearningPoints != nil {
		mux.HandleFunc("/learning-points/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/learning-points/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithPointID(r.Context(), id))
			switch r.Method {
			case http.MethodPut:
				cfg.LearningPoints.Update(w, r)
			case http.MethodDelete:
				cfg.LearningPoints.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodPut, http.MethodDelete)
			}
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func splitPath(rest string) []string {
	trimmed := strings.Trim(rest, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
