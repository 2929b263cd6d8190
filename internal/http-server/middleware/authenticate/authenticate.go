package authenticate

import (
	"context"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"qrattend/entity"
	"qrattend/impl/auth"
	"qrattend/lib/api/cont"
	"qrattend/lib/api/response"
	"qrattend/lib/apperr"
	"qrattend/lib/sl"

	"log/slog"
	"net/http"

	"strings"
	"time"
)

type Authenticate interface {
	AuthenticateByToken(ctx context.Context, token string) (*entity.Member, error)
}

// New checks the bearer token of every request and puts the member into the
// request context. Failures answer 401 with the reason code, so clients can
// tell a replaced session from an expired token.
func New(log *slog.Logger, a Authenticate) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")
	log.With(mod).Info("authenticate middleware initialized")

	return func(next http.Handler) http.Handler {

		fn := func(w http.ResponseWriter, r *http.Request) {
			id := middleware.GetReqID(r.Context())
			logger := log.With(
				mod,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", cont.GetDevice(r.Context())),
				slog.String("request_id", id),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			t1 := time.Now()
			defer func() {
				logger.With(
					slog.Int("status", ww.Status()),
					slog.Int("size", ww.BytesWritten()),
					slog.Float64("duration", time.Since(t1).Seconds()),
				).Info("incoming request")
			}()

			token := bearer(r.Header.Get("Authorization"))
			if token == "" {
				logger = logger.With(slog.String("reason", "token not found"))
				authFailed(ww, r, apperr.ErrUnauthenticated)
				return
			}
			logger = logger.With(sl.Secret("token", token))

			if a == nil {
				authFailed(ww, r, apperr.ErrUnauthenticated)
				return
			}

			member, err := a.AuthenticateByToken(r.Context(), token)
			if err != nil {
				logger = logger.With(sl.Err(err))
				e := apperr.As(err)
				if e == nil {
					render.Status(r, http.StatusInternalServerError)
					render.JSON(ww, r, response.Error("Internal server error"))
					return
				}
				authFailed(ww, r, e)
				return
			}
			logger = logger.With(
				slog.String("member_id", member.Id),
				slog.String("role", string(member.Role)),
			)
			ctx := cont.PutMember(r.Context(), member)

			ww.Header().Set("X-Request-ID", id)
			next.ServeHTTP(ww, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}

func bearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func authFailed(w http.ResponseWriter, r *http.Request, err *apperr.Error) {
	render.Status(r, response.Status(err))
	render.JSON(w, r, response.Fail(err))
}

// Roles lets the request through only for the listed roles. It must run
// after New.
func Roles(log *slog.Logger, roles ...entity.Role) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authorize")
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			member := cont.GetMember(r.Context())
			if err := auth.Authorize(member, roles...); err != nil {
				e := apperr.As(err)
				log.With(
					mod,
					slog.String("path", r.URL.Path),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("code", e.Code),
				).Info("access denied")
				authFailed(w, r, e)
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
