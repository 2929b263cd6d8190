package auth

import (
	"context"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
	"qrattend/entity"
	"qrattend/internal/http-server/handlers/errors"
	"qrattend/lib/api/cont"
	"qrattend/lib/api/response"
	"qrattend/lib/sl"
)

type Core interface {
	Register(ctx context.Context, req *entity.Registration) (*entity.MemberInfo, error)
	Login(ctx context.Context, req *entity.Credentials, origin string) (*entity.LoginResult, error)
	Logout(ctx context.Context, member *entity.Member) error
}

func Register(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.auth")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.Registration
		if err := render.Bind(r, &req); err != nil {
			errors.BadRequest(w, r, logger, err)
			return
		}

		member, err := handler.Register(r.Context(), &req)
		if err != nil {
			errors.Render(w, r, logger, err)
			return
		}
		logger.With(slog.String("member_id", member.Id)).Info("member registered")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Message("User registered successfully", member))
	}
}

func Login(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.auth")

		origin := cont.GetDevice(r.Context())
		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("origin", origin),
		)

		var req entity.Credentials
		if err := render.Bind(r, &req); err != nil {
			errors.BadRequest(w, r, logger, err)
			return
		}
		logger = logger.With(slog.String("email", req.Email))

		result, err := handler.Login(r.Context(), &req, origin)
		if err != nil {
			errors.Render(w, r, logger, err)
			return
		}
		logger.With(slog.String("member_id", result.Member.Id)).Info("member logged in")

		render.JSON(w, r, response.Message("Login successful", result))
	}
}

func Logout(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.auth")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if err := handler.Logout(r.Context(), cont.GetMember(r.Context())); err != nil {
			errors.Render(w, r, logger, err)
			return
		}

		render.JSON(w, r, response.Message("Logged out successfully", nil))
	}
}

// Me returns the authenticated member.
func Me(_ *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		member := cont.GetMember(r.Context())
		if member == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("Not authenticated"))
			return
		}
		render.JSON(w, r, response.Ok(member))
	}
}
