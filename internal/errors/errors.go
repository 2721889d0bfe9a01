// Package errors consolidates error definitions for buoyd.
//
// This package provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - HTTP status mapping for the API surface
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Source / data errors
	ErrUnknownSource = errors.New("source has not been seen")
	ErrNoPosition    = errors.New("source has not reported a position yet")

	// Ingestion errors
	ErrMalformedMessage = errors.New("malformed queue message")
	ErrMalformedReading = errors.New("malformed reading")

	// Transport / backend errors
	ErrTransport = errors.New("transport failure")
	ErrDatabase  = errors.New("database error")
	ErrClosed    = errors.New("store is closed")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsUnknownSource returns true if err indicates the source has never been seen.
func IsUnknownSource(err error) bool {
	return errors.Is(err, ErrUnknownSource)
}

// IsMalformed returns true if err is a decode/validation failure of inbound data.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedMessage) ||
		errors.Is(err, ErrMalformedReading) ||
		errors.Is(err, ErrMissingField)
}

// IsTransient returns true if the error is potentially retriable: the
// operation may succeed later without any change to its inputs.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrDatabase)
}

// ============================================================================
// HTTP status mapping
// ============================================================================

// HTTPStatus maps a sentinel error to the HTTP status the API surfaces.
// Unknown sources are a distinct, user-visible not-found condition; absence
// of a measurement type is not an error and never reaches this mapping.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is(err, ErrUnknownSource):
		return http.StatusNotFound
	case Is(err, ErrNoPosition):
		return http.StatusBadRequest
	case IsMalformed(err), Is(err, ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewUnknownSource creates an unknown-source error carrying the source id.
func NewUnknownSource(sourceID int) error {
	return fmt.Errorf("buoy %d: %w", sourceID, ErrUnknownSource)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}
