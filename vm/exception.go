package vm

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// RException: raised exception objects
// ---------------------------------------------------------------------------

// RException is an exception instance. It doubles as a Go error so that a
// raise travels up through ordinary error returns; errors.As recovers the
// exact instance at any level.
type RException struct {
	RBasic
	Message   string
	Cause     error
	Backtrace []string
}

// Error implements error.
func (e *RException) Error() string {
	name := "Exception"
	if e.c != nil {
		name = e.c.Name
	}
	if e.Message == "" {
		return name
	}
	return e.Message + " (" + name + ")"
}

// Unwrap returns the Go error that caused the exception, if any.
func (e *RException) Unwrap() error { return e.Cause }

// IsA reports whether the exception is an instance of c or a subclass.
func (e *RException) IsA(c *RClass) bool {
	return e.c != nil && e.c.IsSubclassOf(c)
}

// FullMessage renders the message followed by the backtrace.
func (e *RException) FullMessage() string {
	var sb strings.Builder
	if len(e.Backtrace) > 0 {
		sb.WriteString(e.Backtrace[0])
		sb.WriteString(": ")
	}
	sb.WriteString(e.Error())
	for _, frame := range e.Backtrace[min(1, len(e.Backtrace)):] {
		sb.WriteString("\n\tfrom ")
		sb.WriteString(frame)
	}
	return sb.String()
}

// NewException allocates an exception of class c without raising it.
func (s *State) NewException(c *RClass, msg string) *RException {
	if c == nil {
		c = s.RuntimeErrorClass
	}
	e := &RException{RBasic: RBasic{c: c}, Message: msg}
	s.protect(e)
	return e
}

// ---------------------------------------------------------------------------
// Raising
// ---------------------------------------------------------------------------

// Raise records a new exception of class c as pending and returns it as an
// error for the caller to propagate.
func (s *State) Raise(c *RClass, msg string) error {
	return s.RaiseException(s.NewException(c, msg))
}

// Raisef is Raise with formatting.
func (s *State) Raisef(c *RClass, format string, args ...any) error {
	return s.Raise(c, fmt.Sprintf(format, args...))
}

// RaiseWithCause raises an exception that wraps a Go error.
func (s *State) RaiseWithCause(c *RClass, msg string, cause error) error {
	e := s.NewException(c, msg)
	e.Cause = cause
	return s.RaiseException(e)
}

// RaiseException records e as pending and returns it.
func (s *State) RaiseException(e *RException) error {
	s.Exc = e
	return e
}

// ClearException drops the pending exception.
func (s *State) ClearException() { s.Exc = nil }

// AsException extracts the exception carried by err, if any.
func AsException(err error) (*RException, bool) {
	var e *RException
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// toException turns any error escaping a Go method into an exception. Errors
// that already carry one pass through unchanged, as does ErrStop.
func (s *State) toException(err error) error {
	if err == nil || errors.Is(err, ErrStop) {
		return err
	}
	if _, ok := AsException(err); ok {
		return err
	}
	return s.RaiseWithCause(s.RuntimeErrorClass, err.Error(), err)
}
