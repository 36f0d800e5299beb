package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrNotTracked is returned when a status change targets an event that is not tracked.
	ErrNotTracked = fmt.Errorf("%w: event is not tracked", ErrNotFound)
	// ErrAlreadyExists is returned when an event with the same name and date is already stored.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrConflict is returned when persisted state was changed by another writer.
	ErrConflict = errors.New("application: state changed concurrently")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver,
// prefixing each field when prefix is not empty.
func (v *ValidationError) merge(prefix string, other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		if prefix != "" {
			field = prefix + "." + field
		}
		v.add(field, msg)
	}
}

// ParseError reports a malformed import payload. The whole import is rejected.
type ParseError struct {
	Format string
	Reason string
	Err    error
}

func (p *ParseError) Error() string {
	if p == nil {
		return ""
	}
	msg := fmt.Sprintf("parse %s: %s", p.Format, p.Reason)
	if p.Err != nil {
		msg += ": " + p.Err.Error()
	}
	return msg
}

func (p *ParseError) Unwrap() error {
	if p == nil {
		return nil
	}
	return p.Err
}

// NewParseError builds a ParseError for the given payload format.
func NewParseError(format, reason string, err error) *ParseError {
	return &ParseError{Format: format, Reason: reason, Err: err}
}

// ConnectivityError is returned when an online search is attempted while offline.
type ConnectivityError struct {
	Err error
}

func (c *ConnectivityError) Error() string {
	if c == nil || c.Err == nil {
		return "no internet connection available"
	}
	return "no internet connection available: " + c.Err.Error()
}

func (c *ConnectivityError) Unwrap() error {
	if c == nil {
		return nil
	}
	return c.Err
}
