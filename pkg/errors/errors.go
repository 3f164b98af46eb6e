// Package errors provides structured error handling for blockscope.
// It defines sentinel errors, exit codes, the failure value recorded in
// explorer state, and helpers for adding context, details, and suggestions.
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
	ExitInput    = 2 // Invalid input
	ExitNotFound = 4 // Resource not found
	ExitConflict = 5 // Operation conflicts with current state
)

// ScopeError is the structured error type for blockscope.
type ScopeError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *ScopeError) Error() string {
	msg := e.Message

	// Sorted for deterministic output
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

func (e *ScopeError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ScopeError. Two errors match when their codes match.
func (e *ScopeError) Is(target error) bool {
	var t *ScopeError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &ScopeError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	// ErrInvalidInput marks missing or invalid caller parameters.
	ErrInvalidInput = &ScopeError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	// ErrRPC marks a fault raised by the node client.
	ErrRPC = &ScopeError{
		Code:     "RPC_ERROR",
		Message:  "node request failed",
		ExitCode: ExitGeneral,
	}

	ErrNotFound = &ScopeError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	ErrInvalidAddress = &ScopeError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	ErrInvalidCurve = &ScopeError{
		Code:     "INVALID_CURVE",
		Message:  "invalid curve",
		ExitCode: ExitInput,
	}

	ErrInvalidHex = &ScopeError{
		Code:     "INVALID_HEX",
		Message:  "invalid hex string",
		ExitCode: ExitInput,
	}

	// Monitor lifecycle errors.
	ErrAlreadyRunning = &ScopeError{
		Code:     "ALREADY_RUNNING",
		Message:  "block monitor is already running",
		ExitCode: ExitConflict,
	}

	ErrNotRunning = &ScopeError{
		Code:     "NOT_RUNNING",
		Message:  "block monitor is not running",
		ExitCode: ExitConflict,
	}

	// Data store expiration errors.
	ErrPayloadTooLarge = &ScopeError{
		Code:     "PAYLOAD_TOO_LARGE",
		Message:  "data store payload exceeds maximum size",
		ExitCode: ExitInput,
	}

	ErrInsufficientDeposit = &ScopeError{
		Code:     "INSUFFICIENT_DEPOSIT",
		Message:  "deposit does not cover the minimum number of epochs",
		ExitCode: ExitInput,
	}

	// Config errors.
	ErrConfigInvalid = &ScopeError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration is invalid",
		ExitCode: ExitInput,
	}

	ErrUnknownConfigKey = &ScopeError{
		Code:     "UNKNOWN_CONFIG_KEY",
		Message:  "unknown config key",
		ExitCode: ExitInput,
	}

	ErrInvalidFormat = &ScopeError{
		Code:     "INVALID_FORMAT",
		Message:  "invalid format",
		ExitCode: ExitInput,
	}
)

// New creates a new ScopeError with the given code and message.
func New(code, message string) *ScopeError {
	return &ScopeError{
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

	var se *ScopeError
	if errors.As(err, &se) {
		return &ScopeError{
			Code:       se.Code,
			Message:    fmt.Sprintf("%s: %s", msg, se.Message),
			Details:    se.Details,
			Suggestion: se.Suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &ScopeError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause returns a copy of the sentinel carrying the given cause.
func WithCause(sentinel *ScopeError, cause error) error {
	return &ScopeError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var se *ScopeError
	if errors.As(err, &se) {
		return &ScopeError{
			Code:       se.Code,
			Message:    se.Message,
			Details:    details,
			Suggestion: se.Suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &ScopeError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var se *ScopeError
	if errors.As(err, &se) {
		return &ScopeError{
			Code:       se.Code,
			Message:    se.Message,
			Details:    se.Details,
			Suggestion: suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &ScopeError{
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

	var se *ScopeError
	if errors.As(err, &se) {
		return se.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var se *ScopeError
	if errors.As(err, &se) {
		return se.Code
	}
	return "GENERAL_ERROR"
}

// Failure is the value shape recorded in explorer state when an operation
// could not complete. It mirrors the {error: message} object a UI renders.
type Failure struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// ToFailure converts an error into a Failure. Returns nil for a nil error.
func ToFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	return &Failure{
		Code:  Code(err),
		Error: err.Error(),
	}
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
