package device

import (
	"net/http"
	"qrattend/lib/api/cont"
	"qrattend/lib/api/remote"
)

// New stores the client address in the request context. It identifies the
// scanning device and is recorded as the origin of a login.
func New(trustProxy bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx := cont.PutDevice(r.Context(), remote.ClientIP(r, trustProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}
