package response

import (
	"net/http"
	"qrattend/lib/apperr"
	"qrattend/lib/clock"
)

type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Success       bool        `json:"success" validate:"required"`
	StatusMessage string      `json:"status_message"`
	Code          string      `json:"code,omitempty"`
	Timestamp     string      `json:"timestamp"`
}

type RangeInfo struct {
	Distance float64 `json:"distance"`
	Limit    float64 `json:"limit"`
}

func Ok(data interface{}) Response {
	return Response{
		Data:          data,
		Success:       true,
		StatusMessage: "Success",
		Timestamp:     clock.Now(),
	}
}

// Message is a successful response with a custom status message.
func Message(message string, data interface{}) Response {
	r := Ok(data)
	r.StatusMessage = message
	return r
}

func Error(message string) Response {
	return Response{
		Success:       false,
		StatusMessage: message,
		Timestamp:     clock.Now(),
	}
}

// Status is the HTTP status for an expected failure.
func Status(err *apperr.Error) int {
	switch err.Code {
	case apperr.CodeMeetingInactive, apperr.CodeNotStarted, apperr.CodeExpired, apperr.CodeOutOfRange:
		return http.StatusForbidden
	case apperr.CodeAlreadyMarked, apperr.CodeDuplicateDevice, apperr.CodeLocationRequired:
		return http.StatusBadRequest
	}
	switch err.Kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthenticated, apperr.KindSessionReplaced:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindValidation, apperr.KindConflict, apperr.KindStateConflict, apperr.KindGeofence:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Fail renders an expected failure with its reason code; OUT_OF_RANGE
// also carries the measured distance and the allowed radius.
func Fail(err *apperr.Error) Response {
	r := Error(err.Message)
	r.Code = err.Code
	if err.Code == apperr.CodeOutOfRange {
		r.Data = RangeInfo{
			Distance: err.Distance,
			Limit:    err.Limit,
		}
	}
	return r
}
