package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind represents the category of error
type Kind string

const (
	// KindNotFound is an unresolved user, tweet or comment
	KindNotFound Kind = "not_found"
	// KindConflict is a uniqueness violation or a forbidden relation
	KindConflict Kind = "conflict"
	// KindInvalidInput is a missing or malformed required value
	KindInvalidInput Kind = "invalid_input"
	// KindPersistence is a durable read or write that did not complete
	KindPersistence Kind = "persistence"
)

// Codes narrow a kind down to the exact failure.
const (
	CodeUserNotFound       = "user_not_found"
	CodeTweetNotFound      = "tweet_not_found"
	CodeCommentNotFound    = "comment_not_found"
	CodeDuplicateEmail     = "duplicate_email"
	CodeDuplicateUsername  = "duplicate_username"
	CodeUsernameTaken      = "username_taken"
	CodeSelfFollow         = "self_follow"
	CodeEmptyContent       = "empty_content"
	CodeInvalidInput       = "invalid_input"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidReaction    = "invalid_reaction"
	CodeWriteFailed        = "write_failed"
	CodeReadFailed         = "read_failed"
	CodeUnsupportedFormat  = "unsupported_format"
)

// Error is the error type returned by every store operation
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Kind, e.Code, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, and by code when the target sets one.
// This lets callers write errors.Is(err, apperrors.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// New creates a new error
func New(kind Kind, code, message string, err error) *Error {
	return &Error{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Sentinels for errors.Is checks against a whole kind.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	ErrPersistence  = &Error{Kind: KindPersistence}
)

// NotFound builds a KindNotFound error
func NotFound(code, format string, args ...any) *Error {
	return New(KindNotFound, code, fmt.Sprintf(format, args...), nil)
}

// Conflict builds a KindConflict error
func Conflict(code, format string, args ...any) *Error {
	return New(KindConflict, code, fmt.Sprintf(format, args...), nil)
}

// InvalidInput builds a KindInvalidInput error
func InvalidInput(code, format string, args ...any) *Error {
	return New(KindInvalidInput, code, fmt.Sprintf(format, args...), nil)
}

// Persistence wraps a failed durable read or write
func Persistence(code, message string, err error) *Error {
	return New(KindPersistence, code, message, err)
}

// Helper functions

// KindOf returns the kind of err, or "" when err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of err, or "" when err is not an *Error
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsKind checks if an error is of a specific kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func IsNotFound(err error) bool     { return IsKind(err, KindNotFound) }
func IsConflict(err error) bool     { return IsKind(err, KindConflict) }
func IsInvalidInput(err error) bool { return IsKind(err, KindInvalidInput) }
func IsPersistence(err error) bool  { return IsKind(err, KindPersistence) }

// IsRetryable checks if an error is retryable. Caller errors never are; a failed
// write left memory untouched, so re-issuing the same operation is safe.
func IsRetryable(err error) bool {
	return IsPersistence(err)
}
