package application

import (
	"errors"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"name": "name is required", "city": "city is required"}}
	want := "validation failed: city: city is required; name: name is required"
	if got := withFields.Error(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}

	var nilErr *ValidationError
	if nilErr.HasErrors() {
		t.Fatalf("expected nil error to report no errors")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge("", other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge("rows[2]", other)
	if got := base.FieldErrors["rows[2].second"]; got != "another" {
		t.Fatalf("expected merge to prefix field, got %v", base.FieldErrors)
	}

	base.merge("ignored", nil)
	if len(base.FieldErrors) != 3 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestParseError(t *testing.T) {
	t.Parallel()

	cause := errors.New("unexpected EOF")
	err := NewParseError("json", "document is malformed", cause)
	if got := err.Error(); got != "parse json: document is malformed: unexpected EOF" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected ParseError to unwrap to its cause")
	}

	bare := NewParseError("csv", "missing column Event Name", nil)
	if got := bare.Error(); got != "parse csv: missing column Event Name" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestConnectivityError(t *testing.T) {
	t.Parallel()

	if got := (&ConnectivityError{}).Error(); got != "no internet connection available" {
		t.Fatalf("unexpected message %q", got)
	}
	cause := errors.New("dial tcp: timeout")
	err := &ConnectivityError{Err: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("expected ConnectivityError to unwrap to its cause")
	}
}

func TestErrNotTrackedIsNotFound(t *testing.T) {
	t.Parallel()

	if !errors.Is(ErrNotTracked, ErrNotFound) {
		t.Fatalf("expected ErrNotTracked to match ErrNotFound")
	}
	if errors.Is(ErrNotFound, ErrNotTracked) {
		t.Fatalf("expected ErrNotFound not to match ErrNotTracked")
	}
}
