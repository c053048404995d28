// Package errors consolidates error definitions for the scopedb project.
//
// This package provides:
// - Wire protocol error codes
// - Sentinel errors for all error conditions
// - Error category checking functions
// - ErrorToCode and CodeToError mapping
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Wire protocol error codes - used in framed Error messages
// ============================================================================

const (
	CodeUnknown        int32 = 1
	CodeInvalidRequest int32 = 2
	CodeNotFound       int32 = 3
	CodeInvalidSample  int32 = 4
	CodeOutOfOrder     int32 = 5
	CodeInternal       int32 = 6
	CodeTimeout        int32 = 7
)

// CodeName returns a human-readable name for an error code.
func CodeName(code int32) string {
	switch code {
	case CodeUnknown:
		return "Unknown"
	case CodeInvalidRequest:
		return "InvalidRequest"
	case CodeNotFound:
		return "NotFound"
	case CodeInvalidSample:
		return "InvalidSample"
	case CodeOutOfOrder:
		return "OutOfOrderSample"
	case CodeInternal:
		return "Internal"
	case CodeTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("Code(%d)", code)
	}
}

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Ingestion errors
	ErrInvalidSample    = errors.New("invalid sample")
	ErrOutOfOrderSample = errors.New("out-of-order sample")

	// Read-path errors
	ErrUnknownChannel = errors.New("unknown channel")

	// Validation errors
	ErrInvalidBudget   = errors.New("invalid point budget")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrMissingField    = errors.New("missing required field")

	// Protocol errors
	ErrMessageTooLarge  = errors.New("message exceeds size limit")
	ErrTimeout          = errors.New("timeout")
	ErrConnectionFailed = errors.New("connection failed")

	// State errors
	ErrClosed   = errors.New("closed")
	ErrInternal = errors.New("internal error")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsRejectedSample returns true if err rejects a single sample without
// affecting store state.
func IsRejectedSample(err error) bool {
	return errors.Is(err, ErrInvalidSample) ||
		errors.Is(err, ErrOutOfOrderSample)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidBudget) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrMissingField)
}

// IsRetriable returns true if the error is potentially retriable.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed)
}

// ============================================================================
// Error to wire code mapping
// ============================================================================

// ErrorToCode maps a sentinel error to its wire protocol code.
func ErrorToCode(err error) int32 {
	if err == nil {
		return CodeUnknown
	}

	switch {
	case Is(err, ErrUnknownChannel):
		return CodeNotFound
	case Is(err, ErrInvalidSample):
		return CodeInvalidSample
	case Is(err, ErrOutOfOrderSample):
		return CodeOutOfOrder
	case Is(err, ErrMessageTooLarge):
		return CodeInvalidRequest
	case IsValidation(err):
		return CodeInvalidRequest
	case Is(err, ErrTimeout):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// CodeToError maps a wire protocol code back to a sentinel error.
func CodeToError(code int32, msg string) error {
	var base error
	switch code {
	case CodeNotFound:
		base = ErrUnknownChannel
	case CodeInvalidSample:
		base = ErrInvalidSample
	case CodeOutOfOrder:
		base = ErrOutOfOrderSample
	case CodeInvalidRequest:
		base = ErrInvalidConfig
	case CodeTimeout:
		base = ErrTimeout
	default:
		base = ErrInternal
	}

	if msg == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, msg)
}

// Wrap wraps an error with additional context.
// Returns nil if err is nil.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
