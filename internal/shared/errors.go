package shared

import "fmt"

// Kind classifies a domain error with an HTTP-status-like severity.
type Kind int

const (
	KindNotFound Kind = iota
	KindConflict
	KindBadRequest
	KindForbidden
)

// Error is a typed, caller-visible domain error. Key is a stable message
// identifier the boundary layer can rely on; Message is human-readable.
type Error struct {
	Kind    Kind
	Key     string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches two domain errors by their stable key, so wrapped sentinels
// still compare with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Key == t.Key
}

// NotFound constructs a not-found domain error.
func NotFound(key, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Key: key, Message: fmt.Sprintf(format, args...)}
}

// Conflict constructs a conflict domain error.
func Conflict(key, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Key: key, Message: fmt.Sprintf(format, args...)}
}

// BadRequest constructs a validation/business-rule domain error.
func BadRequest(key, format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Key: key, Message: fmt.Sprintf(format, args...)}
}

// Forbidden constructs a forbidden domain error.
func Forbidden(key, format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Key: key, Message: fmt.Sprintf(format, args...)}
}
