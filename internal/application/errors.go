package application

import "errors"

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a session is scheduled for a (day, type) that already has one.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidSchedule is returned when a session is scheduled into the past.
	ErrInvalidSchedule = errors.New("application: scheduled time is in the past")
	// ErrIllegalTransition is returned when a lifecycle operation is invalid for the session's current state.
	ErrIllegalTransition = errors.New("application: illegal session transition")
	// ErrConcurrentTransition is returned to the loser of a transition race on the same session key.
	ErrConcurrentTransition = errors.New("application: concurrent transition in progress")
	// ErrMissingReason is returned when a NotAvailable mark omits its reason.
	ErrMissingReason = errors.New("application: NotAvailable status requires a reason")
	// ErrSessionNotActive is returned when a working-set edit targets a session outside its active phase.
	ErrSessionNotActive = errors.New("application: session is not active")
	// ErrSessionLocked is returned when a session artifact is mutated after its session ended.
	ErrSessionLocked = errors.New("application: session has ended and its artifacts are locked")
	// ErrCommitFailed is returned when the atomic roster write did not complete; the session remains active.
	ErrCommitFailed = errors.New("application: roster commit failed")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned when an auth token is past its expiry.
	ErrSessionExpired = errors.New("application: auth session expired")
	// ErrSessionRevoked is returned when an auth token has been revoked.
	ErrSessionRevoked = errors.New("application: auth session revoked")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
