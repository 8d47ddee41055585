// internal/errors/errors.go

// Package errors classifies pipeline failures so the run driver can decide
// what aborts a run and what is only recorded in statistics.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is the failure class of an error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransient covers navigation timeouts, DNS failures and challenges
	// that did not clear. Retried at page or source level.
	KindTransient
	// KindParse covers malformed DOM nodes and attributes.
	KindParse
	// KindEnrichment covers metadata provider failures and misses.
	KindEnrichment
	// KindExhausted marks a source whose retry budget ran out with no items.
	KindExhausted
	// KindFatal aborts the whole run (browser process failed to launch).
	KindFatal
	// KindConfig is an invalid or unreadable configuration.
	KindConfig
	// KindOutput is a failure to persist distribution files.
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindParse:
		return "parse"
	case KindEnrichment:
		return "enrichment"
	case KindExhausted:
		return "exhausted"
	case KindFatal:
		return "fatal"
	case KindConfig:
		return "config"
	case KindOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Error is a classified pipeline error.
type Error struct {
	Kind   Kind
	Op     string
	Source string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Source != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Source)
	}
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return msg + ": " + e.Err.Error()
	}
	if msg == "" {
		return e.Kind.String() + " error"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// ForSource wraps err with a kind, operation and source name.
func ForSource(kind Kind, op, source string, err error) error {
	return &Error{Kind: kind, Op: op, Source: source, Err: err}
}

// Fatal is shorthand for New(KindFatal, op, err).
func Fatal(op string, err error) error {
	return New(KindFatal, op, err)
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindFatal, KindConfig, KindOutput:
		return true
	}
	return false
}

// IsRetryable reports whether err is worth retrying at page or source level.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// Is and As re-export the standard helpers so callers need one import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }
