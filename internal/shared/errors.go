package shared

import "errors"

var (
	// ErrUnauthenticated indicates a missing or invalid credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the caller lacks the role or tenant affinity for an action.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness or state conflict.
	ErrConflict = errors.New("conflict")
	// ErrInternal indicates an unexpected datastore or runtime failure.
	ErrInternal = errors.New("internal error")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = &Error{Kind: ErrUnauthenticated, Message: "Invalid credentials."}
)

// Error is a classified failure carrying a message that is safe to return to callers.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

// Unwrap exposes the kind so errors.Is(err, ErrForbidden) works.
func (e *Error) Unwrap() error { return e.Kind }

// Unauthenticated builds an ErrUnauthenticated failure.
func Unauthenticated(msg string) error { return &Error{Kind: ErrUnauthenticated, Message: msg} }

// Forbidden builds an ErrForbidden failure.
func Forbidden(msg string) error { return &Error{Kind: ErrForbidden, Message: msg} }

// Validation builds an ErrValidation failure.
func Validation(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }

// NotFound builds an ErrNotFound failure.
func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

// Conflict builds an ErrConflict failure.
func Conflict(msg string) error { return &Error{Kind: ErrConflict, Message: msg} }

// Message returns the caller-safe message carried by err, or "" when err is unclassified.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

// IsClassified reports whether err belongs to a known non-internal kind.
func IsClassified(err error) bool {
	for _, kind := range []error{ErrUnauthenticated, ErrForbidden, ErrValidation, ErrNotFound, ErrConflict} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
