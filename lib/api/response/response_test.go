package response

import (
	"net/http"
	"qrattend/lib/apperr"
	"testing"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  *apperr.Error
		want int
	}{
		{apperr.ErrMeetingNotFound, http.StatusNotFound},
		{apperr.ErrMeetingInactive, http.StatusForbidden},
		{apperr.ErrNotStarted, http.StatusForbidden},
		{apperr.ErrExpired, http.StatusForbidden},
		{apperr.ErrLocationRequired, http.StatusBadRequest},
		{apperr.OutOfRange(900, 500), http.StatusForbidden},
		{apperr.ErrAlreadyMarked, http.StatusBadRequest},
		{apperr.ErrDuplicateDevice, http.StatusBadRequest},
		{apperr.ErrUnauthenticated, http.StatusUnauthorized},
		{apperr.ErrTokenExpired, http.StatusUnauthorized},
		{apperr.ErrIdentityNotFound, http.StatusUnauthorized},
		{apperr.ErrSessionReplaced, http.StatusUnauthorized},
		{apperr.ErrForbidden, http.StatusForbidden},
		{apperr.Validation("x"), http.StatusBadRequest},
		{apperr.ErrBadCredentials, http.StatusBadRequest},
		{&apperr.Error{Kind: apperr.KindInternal, Code: "X"}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.err.Code, got, tc.want)
		}
	}
}

func TestFail(t *testing.T) {
	r := Fail(apperr.OutOfRange(812.4, 500))
	if r.Success || r.Code != apperr.CodeOutOfRange {
		t.Fatalf("unexpected response %+v", r)
	}
	info, ok := r.Data.(RangeInfo)
	if !ok || info.Limit != 500 || info.Distance != 812.4 {
		t.Fatalf("range info missing: %+v", r.Data)
	}

	r = Fail(apperr.ErrSessionReplaced)
	if r.Code != "SESSION_REPLACED" || r.Data != nil {
		t.Fatalf("unexpected response %+v", r)
	}
}
