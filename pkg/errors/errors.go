// Package errors provides common domain error types for the recall sync service.
//
// This package defines sentinel errors for common domain conditions like
// "not found" or "unsupported platform" that can be used across all packages.
// Using typed errors enables consistent error handling patterns with
// errors.Is() checks.
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., duplicate key).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrUnsupportedPlatform indicates a calendar platform this service
	// does not know how to interpret. Eligibility evaluation must fail
	// loudly on this rather than defaulting to "not eligible".
	ErrUnsupportedPlatform = errors.New("unsupported calendar platform")

	// ErrMalformedAttendee indicates attendee data that cannot be
	// classified (e.g. an email with no @). Upstream data defect.
	ErrMalformedAttendee = errors.New("malformed attendee data")

	// ErrCalendarDisconnected indicates the remote provider no longer
	// authorizes this calendar.
	ErrCalendarDisconnected = errors.New("calendar disconnected")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether any error in err's chain is ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnsupportedPlatform reports whether any error in err's chain is ErrUnsupportedPlatform.
func IsUnsupportedPlatform(err error) bool {
	return errors.Is(err, ErrUnsupportedPlatform)
}

// IsMalformedAttendee reports whether any error in err's chain is ErrMalformedAttendee.
func IsMalformedAttendee(err error) bool {
	return errors.Is(err, ErrMalformedAttendee)
}

// IsCalendarDisconnected reports whether any error in err's chain is ErrCalendarDisconnected.
func IsCalendarDisconnected(err error) bool {
	return errors.Is(err, ErrCalendarDisconnected)
}
