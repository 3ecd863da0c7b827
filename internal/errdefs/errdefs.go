// Package errdefs defines the error kinds returned by the filevault core.
//
// Every business-rule violation is an *Error carrying a Kind and a human readable
// message. Callers match kinds with errors.Is against the exported sentinels:
//
//	if errors.Is(err, errdefs.ErrNotFound) { ... }
//
// Storage and transport faults are not *Error values; they are wrapped with %w and
// propagate unchanged.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnauthorized       Kind = "unauthorized"
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
	KindConflict           Kind = "conflict"
	KindPreconditionFailed Kind = "precondition_failed"
	KindIntegrity          Kind = "integrity_error"

	// Share-link resolution failures.
	KindInactive             Kind = "inactive"
	KindExpired              Kind = "expired"
	KindDownloadLimitReached Kind = "download_limit_reached"
	KindPasswordRequired     Kind = "password_required"
	KindInvalidPassword      Kind = "invalid_password"
)

// Error is a structured business failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnauthorized         = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidInput         = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrConflict             = &Error{Kind: KindConflict, Message: "conflict"}
	ErrPreconditionFailed   = &Error{Kind: KindPreconditionFailed, Message: "precondition failed"}
	ErrIntegrity            = &Error{Kind: KindIntegrity, Message: "integrity error"}
	ErrInactive             = &Error{Kind: KindInactive, Message: "share link is inactive"}
	ErrExpired              = &Error{Kind: KindExpired, Message: "share link has expired"}
	ErrDownloadLimitReached = &Error{Kind: KindDownloadLimitReached, Message: "download limit reached"}
	ErrPasswordRequired     = &Error{Kind: KindPasswordRequired, Message: "password required"}
	ErrInvalidPassword      = &Error{Kind: KindInvalidPassword, Message: "invalid password"}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) error { return newf(KindUnauthorized, format, args...) }
func NotFound(format string, args ...any) error     { return newf(KindNotFound, format, args...) }
func InvalidInput(format string, args ...any) error { return newf(KindInvalidInput, format, args...) }
func Conflict(format string, args ...any) error     { return newf(KindConflict, format, args...) }
func PreconditionFailed(format string, args ...any) error {
	return newf(KindPreconditionFailed, format, args...)
}
func Integrity(format string, args ...any) error { return newf(KindIntegrity, format, args...) }

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, message string) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of err, or "" when err is not a business failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the human readable message of a business failure.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
