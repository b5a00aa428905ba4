// Package errors provides the coded error types surfaced by the geo-filter engine.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *AppError
		wantSub string
	}{
		{
			name:    "without wrapped error",
			err:     New(CodeBadRequest, "invalid input"),
			wantSub: "BAD_REQUEST: invalid input",
		},
		{
			name:    "with wrapped error",
			err:     Wrap(errors.New("underlying error"), CodeInternal, "something failed"),
			wantSub: "INTERNAL_ERROR: something failed: underlying error",
		},
		{
			name:    "unknown region",
			err:     UnknownRegion("nc", "99999"),
			wantSub: `UNKNOWN_REGION: nc boundary "99999" not found`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.wantSub {
				t.Errorf("Error() = %v, want %v", got, tt.wantSub)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	appErr := Wrap(underlying, CodeInternal, "wrapped")

	if appErr.Unwrap() != underlying {
		t.Error("Unwrap() should return underlying error")
	}

	appErr2 := New(CodeBadRequest, "no wrap")
	if appErr2.Unwrap() != nil {
		t.Error("Unwrap() should return nil for unwrapped error")
	}
}

func TestAppError_IsSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"empty input", EmptyInput("no features"), ErrEmptyInput},
		{"unknown region", UnknownRegion("cc", "42"), ErrUnknownRegion},
		{"missing aggregate", MissingAggregate("cc", "5"), ErrMissingAggregate},
		{"invalid geometry", InvalidGeometry("self-intersecting ring"), ErrInvalidGeometry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("select region: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}
			if errors.Is(wrapped, errOther) {
				t.Error("should not match a different code")
			}
		})
	}
}

var errOther = Internal("internal")

func TestAppError_WithDetails(t *testing.T) {
	err := MissingAggregate("nc", "12")

	if err.Details["kind"] != "nc" {
		t.Errorf("Details[kind] = %s, want nc", err.Details["kind"])
	}
	if err.Details["id"] != "12" {
		t.Errorf("Details[id] = %s, want 12", err.Details["id"])
	}
}

func TestPredicates(t *testing.T) {
	stdErr := errors.New("standard error")

	if !IsUnknownRegion(UnknownRegion("nc", "1")) || IsUnknownRegion(stdErr) {
		t.Error("IsUnknownRegion mismatch")
	}
	if !IsMissingAggregate(MissingAggregate("nc", "1")) || IsMissingAggregate(stdErr) {
		t.Error("IsMissingAggregate mismatch")
	}
	if !IsInvalidGeometry(InvalidGeometry("bad")) || IsInvalidGeometry(stdErr) {
		t.Error("IsInvalidGeometry mismatch")
	}
	if !IsEmptyInput(EmptyInput("none")) || IsEmptyInput(stdErr) {
		t.Error("IsEmptyInput mismatch")
	}
	if !IsValidation(Validation("bad")) || IsValidation(BadRequest("bad")) {
		t.Error("IsValidation mismatch")
	}
}

func TestCode(t *testing.T) {
	if code := Code(NotFound("resource")); code != CodeNotFound {
		t.Errorf("Code() = %s, want %s", code, CodeNotFound)
	}
	if code := Code(errors.New("standard error")); code != "" {
		t.Errorf("Code() = %s, want empty string", code)
	}
	if code := Code(nil); code != "" {
		t.Errorf("Code(nil) = %s, want empty string", code)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{UnknownRegion("nc", "1"), http.StatusNotFound},
		{MissingAggregate("cc", "1"), http.StatusNotFound},
		{InvalidGeometry("bad"), http.StatusUnprocessableEntity},
		{EmptyInput("none"), http.StatusUnprocessableEntity},
		{Validation("bad"), http.StatusBadRequest},
		{UnsupportedMediaType("xml"), http.StatusUnsupportedMediaType},
		{RateLimited(), http.StatusTooManyRequests},
		{fmt.Errorf("wrapped: %w", BadRequest("bad")), http.StatusBadRequest},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, MissingAggregate("cc", "5"), "trace-1")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != CodeMissingAggregate {
		t.Errorf("code = %s, want %s", body.Error.Code, CodeMissingAggregate)
	}
	if body.TraceID != "trace-1" {
		t.Errorf("trace id = %s, want trace-1", body.TraceID)
	}
	if body.Error.Details["id"] != "5" {
		t.Errorf("details[id] = %s, want 5", body.Error.Details["id"])
	}
}

func TestWriteError_NonAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("boom"), "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Message != "An internal error occurred" {
		t.Errorf("message = %q", body.Error.Message)
	}
}
