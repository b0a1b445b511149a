package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies a category of domain failure. Transport layers
// map codes onto HTTP statuses without inspecting message text.
type ErrorCode string

const (
	ErrCodeInvalidInterval ErrorCode = "INVALID_INTERVAL"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeInactiveEntity  ErrorCode = "INACTIVE_ENTITY"
	ErrCodeUnavailable     ErrorCode = "UNAVAILABLE"
	ErrCodeBookingConflict ErrorCode = "BOOKING_CONFLICT"
	ErrCodeInvalidState    ErrorCode = "INVALID_STATE"
)

// Error is a domain failure with a stable machine-readable code.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// CodeOf extracts the domain error code from err, or "" when err is not
// a domain error.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func NewInvalidInterval(start, end time.Time) *Error {
	return &Error{
		Code:    ErrCodeInvalidInterval,
		Message: fmt.Sprintf("start time %s must be before end time %s", start.Format(time.RFC3339), end.Format(time.RFC3339)),
	}
}

func NewNotFound(entity string, id int64) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %d not found", entity, id),
	}
}

func NewInactiveEntity(entity string, id int64) *Error {
	return &Error{
		Code:    ErrCodeInactiveEntity,
		Message: fmt.Sprintf("%s %d is inactive", entity, id),
	}
}

func NewUnavailable(garmentID int64, status GarmentStatus) *Error {
	return &Error{
		Code:    ErrCodeUnavailable,
		Message: fmt.Sprintf("garment %d is not available for rental (status %s)", garmentID, status),
	}
}

func NewBookingConflict(garmentID int64, start, end time.Time, conflictingID int64) *Error {
	return &Error{
		Code: ErrCodeBookingConflict,
		Message: fmt.Sprintf("garment %d is already booked between %s and %s (rental %d)",
			garmentID, start.Format(time.RFC3339), end.Format(time.RFC3339), conflictingID),
	}
}

func NewInvalidState(msg string) *Error {
	return &Error{Code: ErrCodeInvalidState, Message: msg}
}
