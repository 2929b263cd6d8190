// Package apperr defines the expected, user-facing failures of the service.
// Each error carries a Kind that the HTTP layer turns into a status and a
// Code that clients branch on; codes are part of the API and never change.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindStateConflict
	KindGeofence
	KindUnauthenticated
	KindSessionReplaced
	KindForbidden
	KindValidation
	KindConflict
)

const (
	CodeNotFound         = "NOT_FOUND"
	CodeMeetingInactive  = "MEETING_INACTIVE"
	CodeNotStarted       = "NOT_STARTED"
	CodeExpired          = "EXPIRED"
	CodeLocationRequired = "LOCATION_REQUIRED"
	CodeOutOfRange       = "OUT_OF_RANGE"
	CodeAlreadyMarked    = "ALREADY_MARKED"
	CodeDuplicateDevice  = "DUPLICATE_DEVICE"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeIdentityNotFound = "IDENTITY_NOT_FOUND"
	CodeSessionReplaced  = "SESSION_REPLACED"
	CodeForbidden        = "FORBIDDEN"
	CodeValidation       = "VALIDATION_ERROR"
	CodeConflict         = "CONFLICT"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Distance and Limit are set for OUT_OF_RANGE, in meters.
	Distance float64
	Limit    float64
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Code so that sentinels compare equal to customised copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrMeetingNotFound  = &Error{Kind: KindNotFound, Code: CodeNotFound, Message: "Invalid QR code"}
	ErrMeetingInactive  = &Error{Kind: KindStateConflict, Code: CodeMeetingInactive, Message: "Meeting is not active"}
	ErrNotStarted       = &Error{Kind: KindStateConflict, Code: CodeNotStarted, Message: "Meeting has not started yet"}
	ErrExpired          = &Error{Kind: KindStateConflict, Code: CodeExpired, Message: "Meeting has ended, QR expired"}
	ErrLocationRequired = &Error{Kind: KindGeofence, Code: CodeLocationRequired, Message: "Location access is required. Please enable GPS and allow location permission."}
	ErrOutOfRange       = &Error{Kind: KindGeofence, Code: CodeOutOfRange, Message: "You are too far from the meeting venue"}
	ErrAlreadyMarked    = &Error{Kind: KindStateConflict, Code: CodeAlreadyMarked, Message: "Attendance already marked for this meeting"}
	ErrDuplicateDevice  = &Error{Kind: KindStateConflict, Code: CodeDuplicateDevice, Message: "Attendance already marked from this device"}

	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated, Code: CodeUnauthenticated, Message: "Invalid token"}
	ErrTokenExpired     = &Error{Kind: KindUnauthenticated, Code: CodeTokenExpired, Message: "Token has expired"}
	ErrIdentityNotFound = &Error{Kind: KindUnauthenticated, Code: CodeIdentityNotFound, Message: "User not found"}
	ErrSessionReplaced  = &Error{Kind: KindSessionReplaced, Code: CodeSessionReplaced, Message: "Session expired, logged in from another device"}
	ErrForbidden        = &Error{Kind: KindForbidden, Code: CodeForbidden, Message: "Role not allowed"}
	ErrBadCredentials   = &Error{Kind: KindConflict, Code: CodeConflict, Message: "Invalid credentials"}
)

// OutOfRange returns ErrOutOfRange with the measured distance and the limit.
func OutOfRange(distance, limit float64) *Error {
	return &Error{
		Kind:     KindGeofence,
		Code:     CodeOutOfRange,
		Message:  fmt.Sprintf("You are too far from the meeting venue (%.0fm away, must be within %.0fm)", distance, limit),
		Distance: distance,
		Limit:    limit,
	}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Code: CodeConflict, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: message}
}

// As extracts an *Error from err, or returns nil for unexpected failures.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
