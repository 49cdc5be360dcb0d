// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"conflict", Conflict("language %q exists", "en"), KindConflict},
		{"not found", NotFound("language %d", 7), KindNotFound},
		{"invalid", InvalidOperation("cannot deactivate default"), KindInvalidOperation},
		{"partial", PartialFailure(1, 3), KindPartialFailure},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("x")), KindNotFound},
		{"plain", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorsIsSentinel(t *testing.T) {
	err := fmt.Errorf("set active: %w", InvalidOperation("default language"))

	if !errors.Is(err, ErrInvalidOperation) {
		t.Error("errors.Is(err, ErrInvalidOperation) = false, want true")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = true, want false")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(sql.ErrNoRows, KindNotFound, "translation")

	if !errors.Is(err, sql.ErrNoRows) {
		t.Error("wrapped error should unwrap to sql.ErrNoRows")
	}
	if !IsKind(err, KindNotFound) {
		t.Error("IsKind(err, KindNotFound) = false")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Conflict("x"), http.StatusConflict},
		{NotFound("x"), http.StatusNotFound},
		{InvalidOperation("x"), http.StatusUnprocessableEntity},
		{PartialFailure(1, 2), http.StatusMultiStatus},
		{errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMessageHidesInternal(t *testing.T) {
	if got := Message(errors.New("sql: connection refused")); got != "internal error" {
		t.Errorf("Message() = %q, want %q", got, "internal error")
	}
	if got := Message(NotFound("language 3 not found")); got != "language 3 not found" {
		t.Errorf("Message() = %q", got)
	}
}
