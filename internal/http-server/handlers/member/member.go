package member

import (
	"context"
	"github.com/go-chi/chi/v5"
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
	ListMembers(ctx context.Context) ([]*entity.Member, error)
	GetMember(ctx context.Context, id string) (*entity.MemberDetails, error)
	CreateMember(ctx context.Context, req *entity.MemberCreate) (*entity.MemberInfo, error)
	UpdateMember(ctx context.Context, id string, req *entity.MemberUpdate) (*entity.MemberInfo, error)
	DeleteMember(ctx context.Context, id string, actor *entity.Member) error
	MemberStats(ctx context.Context) (*entity.MemberStats, error)
}

func reqLogger(log *slog.Logger, r *http.Request) *slog.Logger {
	return log.With(
		sl.Module("http.handlers.member"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		members, err := handler.ListMembers(r.Context())
		if err != nil {
			errors.Render(w, r, reqLogger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(members))
	}
}

func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		details, err := handler.GetMember(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			errors.Render(w, r, reqLogger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(details))
	}
}

func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := reqLogger(log, r)

		var req entity.MemberCreate
		if err := render.Bind(r, &req); err != nil {
			errors.BadRequest(w, r, logger, err)
			return
		}

		member, err := handler.CreateMember(r.Context(), &req)
		if err != nil {
			errors.Render(w, r, logger, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Message("Member created", member))
	}
}

func Update(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		logger := reqLogger(log, r).With(slog.String("member_id", id))

		var req entity.MemberUpdate
		if err := render.Bind(r, &req); err != nil {
			errors.BadRequest(w, r, logger, err)
			return
		}

		member, err := handler.UpdateMember(r.Context(), id, &req)
		if err != nil {
			errors.Render(w, r, logger, err)
			return
		}
		render.JSON(w, r, response.Message("Member updated", member))
	}
}

func Delete(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := handler.DeleteMember(r.Context(), id, cont.GetMember(r.Context())); err != nil {
			errors.Render(w, r, reqLogger(log, r).With(slog.String("member_id", id)), err)
			return
		}
		render.JSON(w, r, response.Message("Member deleted", nil))
	}
}

func Stats(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := handler.MemberStats(r.Context())
		if err != nil {
			errors.Render(w, r, reqLogger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(stats))
	}
}
