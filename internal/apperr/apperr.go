// Package apperr defines the error taxonomy shared by every service.
//
// Services return *Error values carrying a Kind. Callers branch on the kind
// with errors.Is against the Err* sentinels, or with KindOf. Only Transient
// errors are ever retried, and only by the notification dispatcher.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindInvalidState       Kind = "invalid_state"
	KindAlreadyReserved    Kind = "already_reserved"
	KindNotAuthorized      Kind = "not_authorized"
	KindConversationClosed Kind = "conversation_closed"
	KindDuplicateRating    Kind = "duplicate_rating"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindTransient          Kind = "transient_error"
	KindNotFound           Kind = "not_found"
	KindInternal           Kind = "internal_error"
)

// Sentinels usable with errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrValidation         = &Error{Kind: KindValidation, Msg: "validation failed"}
	ErrInvalidState       = &Error{Kind: KindInvalidState, Msg: "operation not allowed in current state"}
	ErrAlreadyReserved    = &Error{Kind: KindAlreadyReserved, Msg: "request already reserved by another visitor"}
	ErrNotAuthorized      = &Error{Kind: KindNotAuthorized, Msg: "actor is not authorized"}
	ErrConversationClosed = &Error{Kind: KindConversationClosed, Msg: "conversation is closed"}
	ErrDuplicateRating    = &Error{Kind: KindDuplicateRating, Msg: "rating already submitted"}
	ErrQuotaExceeded      = &Error{Kind: KindQuotaExceeded, Msg: "daily contact view quota exceeded"}
	ErrTransient          = &Error{Kind: KindTransient, Msg: "temporary failure"}
	ErrNotFound           = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrInternal           = &Error{Kind: KindInternal, Msg: "internal error"}
)

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf formats msg and returns an error of the given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to a cause. A nil cause yields nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Validation is shorthand for a KindValidation error.
func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

// InvalidState is shorthand for a KindInvalidState error.
func InvalidState(format string, args ...any) *Error {
	return Newf(KindInvalidState, format, args...)
}

// Transient wraps a storage or network hiccup.
func Transient(msg string, err error) error {
	return Wrap(KindTransient, msg, err)
}

// KindOf returns the kind of err, KindInternal for unclassified errors and
// the empty kind for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
