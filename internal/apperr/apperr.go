// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package apperr defines the error kinds surfaced by the synchronization core.
//
// Registry operations return Conflict, NotFound and InvalidOperation errors
// directly to the caller. Fan-out operations (propagation, activation back-fill)
// report per-row failures in their result and return a PartialFailure error
// only as a summary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of application error.
type Kind string

// Error kinds.
const (
	KindConflict         Kind = "CONFLICT"
	KindNotFound         Kind = "NOT_FOUND"
	KindInvalidOperation Kind = "INVALID_OPERATION"
	KindPartialFailure   Kind = "PROPAGATION_PARTIAL_FAILURE"
	KindInternal         Kind = "INTERNAL_ERROR"
)

// Error is the canonical application error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is and errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind. This lets callers
// compare against the exported sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrConflict         = &Error{Kind: KindConflict}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrInvalidOperation = &Error{Kind: KindInvalidOperation}
	ErrPartialFailure   = &Error{Kind: KindPartialFailure}
)

// Conflict creates an error for duplicate resources.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates an error for a missing resource.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidOperation creates an error for a request that would break an invariant.
func InvalidOperation(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidOperation, Message: fmt.Sprintf(format, args...)}
}

// PartialFailure creates an error summarising a fan-out in which some rows failed.
func PartialFailure(failed, total int) *Error {
	return &Error{
		Kind:    KindPartialFailure,
		Message: fmt.Sprintf("%d of %d rows failed", failed, total),
	}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status code used by the admin API.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidOperation:
		return http.StatusUnprocessableEntity
	case KindPartialFailure:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

// Message returns a client-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal error"
}
