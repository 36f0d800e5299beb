package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/event-catalog/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var baseBuf, ctxBuf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&baseBuf, nil))
	fromCtx := slog.New(slog.NewTextHandler(&ctxBuf, nil))

	ctx := logging.ContextWithLogger(context.Background(), fromCtx)
	serviceLogger(ctx, base, "CatalogService", "Delete", "event_id", "event_1").Info("event deleted")

	if baseBuf.Len() != 0 {
		t.Fatalf("expected base logger to stay unused, got %q", baseBuf.String())
	}
	line := ctxBuf.String()
	for _, want := range []string{"service=CatalogService", "operation=Delete", "event_id=event_1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in log line %q", want, line)
		}
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "not tracked", err: ErrNotTracked, want: "not_tracked"},
		{name: "not found", err: fmt.Errorf("wrap: %w", ErrNotFound), want: "not_found"},
		{name: "already exists", err: ErrAlreadyExists, want: "already_exists"},
		{name: "conflict", err: ErrConflict, want: "conflict"},
		{name: "validation", err: &ValidationError{FieldErrors: map[string]string{"name": "required"}}, want: "validation"},
		{name: "parse", err: NewParseError("json", "bad", nil), want: "parse"},
		{name: "connectivity", err: &ConnectivityError{}, want: "connectivity"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "unexpected", err: errors.New("boom"), want: "unexpected"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ErrorKind(tc.err); got != tc.want {
				t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}
