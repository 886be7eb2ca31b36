// Package errors provides structured error handling for chaincache.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess  = 0 // Successful execution
	ExitGeneral  = 1 // General/unknown error
	ExitInput    = 2 // Invalid input or configuration
	ExitNetwork  = 3 // Remote endpoint failure
	ExitNotFound = 4 // Resource not found upstream or in the cache
	ExitStorage  = 5 // Cache persistence failure
)

// Error is the structured error type used across chaincache.
type Error struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *Error) Error() string {
	msg := e.Message

	// Details are sorted so messages are deterministic.
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same error code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &Error{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &Error{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &Error{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	ErrNetworkError = &Error{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitNetwork,
	}

	ErrNotSupported = &Error{
		Code:     "NOT_SUPPORTED",
		Message:  "operation not supported",
		ExitCode: ExitInput,
	}

	// Cache errors.
	ErrCacheMiss = &Error{
		Code:     "CACHE_MISS",
		Message:  "no cached data available",
		ExitCode: ExitNotFound,
	}

	ErrCacheCorrupt = &Error{
		Code:     "CACHE_CORRUPT",
		Message:  "cached data is corrupted",
		ExitCode: ExitStorage,
	}

	ErrCacheWrite = &Error{
		Code:     "CACHE_WRITE_FAILED",
		Message:  "failed to persist cache",
		ExitCode: ExitStorage,
	}

	// Config errors.
	ErrConfigNotFound = &Error{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &Error{
		Code:     "CONFIG_INVALID",
		Message:  "configuration is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ce *Error
	if errors.As(err, &ce) {
		return &Error{
			Code:       ce.Code,
			Message:    fmt.Sprintf("%s: %s", msg, ce.Message),
			Details:    ce.Details,
			Suggestion: ce.Suggestion,
			Cause:      err,
			ExitCode:   ce.ExitCode,
		}
	}

	return &Error{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return &Error{
			Code:       ce.Code,
			Message:    ce.Message,
			Details:    details,
			Suggestion: ce.Suggestion,
			Cause:      ce.Cause,
			ExitCode:   ce.ExitCode,
		}
	}

	return &Error{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause attaches an underlying cause to a structured error, keeping its code.
func WithCause(err, cause error) error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return &Error{
			Code:       ce.Code,
			Message:    ce.Message,
			Details:    ce.Details,
			Suggestion: ce.Suggestion,
			Cause:      cause,
			ExitCode:   ce.ExitCode,
		}
	}

	return fmt.Errorf("%w: %w", err, cause)
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return &Error{
			Code:       ce.Code,
			Message:    ce.Message,
			Details:    ce.Details,
			Suggestion: suggestion,
			Cause:      ce.Cause,
			ExitCode:   ce.ExitCode,
		}
	}

	return &Error{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
