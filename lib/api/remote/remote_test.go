package remote

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		remote string
		xff    string
		trust  bool
		want   string
	}{
		{"10.0.0.1:5555", "", true, "10.0.0.1"},
		{"10.0.0.1:5555", "203.0.113.7, 10.0.0.1", true, "203.0.113.7"},
		{"10.0.0.1:5555", "203.0.113.7", false, "10.0.0.1"},
		{"[2001:db8::1]:443", "", true, "2001:db8::1"},
		{"weird", "", false, "weird"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = tc.remote
		if tc.xff != "" {
			r.Header.Set("X-Forwarded-For", tc.xff)
		}
		if got := ClientIP(r, tc.trust); got != tc.want {
			t.Fatalf("remote=%q xff=%q trust=%v: got %q, want %q", tc.remote, tc.xff, tc.trust, got, tc.want)
		}
	}
}
