// Package apperr defines the error taxonomy shared across the application.
// Every error is scoped to one request; nothing here is fatal to the process.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy and HTTP status mapping.
type Kind int

const (
	// KindValidation is a missing or malformed required input. No side effects.
	KindValidation Kind = iota
	// KindConfiguration is a missing credential or unsupported provider/model.
	KindConfiguration
	// KindNotFound is a referenced conversation, group, or file that does not exist.
	KindNotFound
	// KindExtraction is a per-file extraction failure. Always recovered inside
	// the compiler; it never propagates past the ingestion pipeline.
	KindExtraction
	// KindProvider is a failed embedding or LLM call, surfaced to the caller.
	KindProvider
	// KindIndexUnavailable is an unreachable vector backend, recovered by
	// falling back to the snapshot or to direct-answer mode.
	KindIndexUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not_found"
	case KindExtraction:
		return "extraction"
	case KindProvider:
		return "provider"
	case KindIndexUnavailable:
		return "index_unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified application error, optionally wrapping a cause.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified error with the given message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns a classified error wrapping err. Returns nil if err is nil.
func Wrap(kind Kind, msg string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or ok=false when err is not a classified error.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

// Is reports whether err is a classified error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
