package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrProjectExists      = errors.New("project already exists")
	ErrInvalidProjectName = errors.New("invalid project name")
	ErrInvalidMainScript  = errors.New("invalid main script")
	ErrInvalidRule        = errors.New("invalid notification rule")
	ErrNotCompiled        = errors.New("project is not compiled")
	ErrProjectDestroyed   = errors.New("project is destroyed")
	ErrLanguageNotFound   = errors.New("language not found")
	ErrUnknownEvent       = errors.New("unknown event")
	ErrFunctionNotFound   = errors.New("function not found")
	ErrRegistrySealed     = errors.New("event registry is sealed")
	ErrAlreadyInitialized = errors.New("session already initialized")
	ErrNotInitialized     = errors.New("session not initialized")
	ErrReleaseUnderflow   = errors.New("job release without matching lock")
	ErrBusFull            = errors.New("event bus is full")
	ErrBusStopped         = errors.New("event bus is stopped")
)

// ArgMismatch describes a single bad argument
type ArgMismatch struct {
	Position int
	Expected ArgKind
	Got      string
}

// ValidationError is returned when event arguments do not match the declared schema
type ValidationError struct {
	EventID       string
	ExpectedArity int
	GotArity      int
	Mismatches    []ArgMismatch
}

func (e *ValidationError) Error() string {
	if e.ExpectedArity != e.GotArity {
		return fmt.Sprintf("event %s: expected %d arguments, got %d", e.EventID, e.ExpectedArity, e.GotArity)
	}
	parts := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		parts[i] = fmt.Sprintf("#%d want %s got %s", m.Position, m.Expected, m.Got)
	}
	return fmt.Sprintf("event %s: argument mismatch: %s", e.EventID, strings.Join(parts, ", "))
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// DuplicateEventError is returned when an event id is registered twice
type DuplicateEventError struct {
	EventID string
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("duplicate event id: %s", e.EventID)
}

// IsDuplicateEventError checks if an error is a DuplicateEventError
func IsDuplicateEventError(err error) (*DuplicateEventError, bool) {
	var de *DuplicateEventError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CompileError wraps a language adapter compile failure
type CompileError struct {
	Project    string
	LanguageID string
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile project %s (%s): %v", e.Project, e.LanguageID, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsCompileError checks if an error is a CompileError
func IsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// RuntimeScriptError wraps an error raised while a project handled an event
type RuntimeScriptError struct {
	Project  string
	Function string
	Err      error
}

func (e *RuntimeScriptError) Error() string {
	return fmt.Sprintf("project %s: %s failed: %v", e.Project, e.Function, e.Err)
}

func (e *RuntimeScriptError) Unwrap() error {
	return e.Err
}

// IsRuntimeScriptError checks if an error is a RuntimeScriptError
func IsRuntimeScriptError(err error) (*RuntimeScriptError, bool) {
	var re *RuntimeScriptError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// ParseError is returned by a parser spec that could not read a notification
type ParseError struct {
	SpecID string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parser %s: %s: %v", e.SpecID, e.Reason, e.Err)
	}
	return fmt.Sprintf("parser %s: %s", e.SpecID, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError checks if an error is a ParseError
func IsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
