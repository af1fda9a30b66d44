// Package perr defines the engine-internal error kinds from the error
// handling design: each kind propagates differently (some halt a task,
// some are stored on a row, some are retryable) but all share one
// wrap/cause shape so callers can test for a kind with errors.Is-style
// helpers regardless of how deep the error has been wrapped.
package perr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the error kinds named in the error handling design.
type Kind string

const (
	// NotFound is surfaced at the edge as 404; inside the engine it halts
	// the current task with Failed.
	NotFound Kind = "not_found"
	// NoPermission is surfaced at the edge as 403. Never produced inside
	// the engine itself, but modeled so permission-grant mutations (which
	// the engine's Store exposes to the API layer) can report it.
	NoPermission Kind = "no_permission"
	// ValidationError is surfaced at the edge as 400.
	ValidationError Kind = "validation_error"
	// ConflictError is surfaced at the edge as 409, for referential
	// constraint violations.
	ConflictError Kind = "conflict_error"
	// DatabaseError is retryable at the event bus layer, fatal for the
	// originating request.
	DatabaseError Kind = "database_error"
	// ChartExtensionError is stored on the chart row, never propagated.
	ChartExtensionError Kind = "chart_extension_error"
	// ResolverError is a failed reference resolution during task
	// execution; it carries a Reason describing precisely what failed.
	ResolverError Kind = "resolver_error"
	// HelmExecutionError wraps a non-zero pod exit.
	HelmExecutionError Kind = "helm_execution_error"
)

// Reason is the precise resolver failure code from the error handling
// design (spec.md §7).
type Reason string

const (
	ReasonMissingInputValue     Reason = "missing_input_value"
	ReasonInputNotACollection   Reason = "input_not_a_collection"
	ReasonUnsupportedCollection Reason = "unsupported_collection"
	ReasonCollectionItemNotFound Reason = "collection_item_not_found"
	ReasonUnknownProperty       Reason = "unknown_property"
)

// Error is the concrete error type every kind is constructed as.
type Error struct {
	Kind   Kind
	Reason Reason // only set for ResolverError
	msg    string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a bare error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates cause with a message and kind, preserving the cause chain.
func Wrap(cause error, kind Kind, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// Resolver builds a ResolverError carrying one of the typed reasons.
func Resolver(reason Reason, format string, args ...any) error {
	return &Error{Kind: ResolverError, Reason: reason, msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err (or any error it wraps) is of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			if e.Kind == kind {
				return true
			}
			err = e.cause
			continue
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// ReasonOf returns the resolver reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == ResolverError {
		return e.Reason, true
	}
	return "", false
}
