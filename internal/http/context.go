package http

import (
	"context"
	"log/slog"

	"github.com/example/ritual-engine/internal/application"
	"github.com/example/ritual-engine/internal/logging"
)

type contextKey string

const (
	principalContextKey     contextKey = "principal"
	sessionRefContextKey    contextKey = "session_ref"
	participantIDContextKey contextKey = "participant_id"
	pointIDContextKey       contextKey = "point_id"
)

// SessionRef is the (day, type) pair resolved from a request path.
type SessionRef struct {
	Day  string
	Type application.SessionType
}

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithSessionRef injects the session reference resolved from the request path.
func ContextWithSessionRef(ctx context.Context, ref SessionRef) context.Context {
	return context.WithValue(ctx, sessionRefContextKey, ref)
}

// SessionRefFromContext extracts a session reference previously associated with the context.
func SessionRefFromContext(ctx context.Context) (SessionRef, bool) {
	ref, ok := ctx.Value(sessionRefContextKey).(SessionRef)
	return ref, ok
}

// ContextWithParticipantID injects the participant identifier resolved from the request path.
func ContextWithParticipantID(ctx context.Context, participantID string) context.Context {
	return context.WithValue(ctx, participantIDContextKey, participantID)
}

// ParticipantIDFromContext extracts a participant identifier previously associated with the context.
func ParticipantIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(participantIDContextKey).(string)
	return id, ok
}

// ContextWithPointID injects the learning point identifier resolved from the request path.
func ContextWithPointID(ctx context.Context, pointID string) context.Context {
	return context.WithValue(ctx, pointIDContextKey, pointID)
}

// PointIDFromContext extracts a learning point identifier previously associated with the context.
func PointIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(pointIDContextKey).(string)
	return id, ok
}

// ContextWithLogger attaches a request scoped logger to the context.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts a request scoped logger from the context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
