package github

import (
	"errors"
	"fmt"
)

// Kind classifies failures reported by the contents API.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindRateLimited  Kind = "rate_limited"
	KindConflict     Kind = "conflict"
	KindUpstream     Kind = "upstream"
)

// Sentinels usable with errors.Is.
var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrRateLimited  = &Error{Kind: KindRateLimited}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrUpstream     = &Error{Kind: KindUpstream}
)

// Error carries the upstream status and message.
type Error struct {
	Kind    Kind
	Status  int // 0 for transport failures
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("github %s (%d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("github %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can compare against the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err, or "" when err is not a github error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
