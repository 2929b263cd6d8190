package health

import (
	"context"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
	"qrattend/lib/api/response"
	"qrattend/lib/sl"
)

type Core interface {
	Health(ctx context.Context) error
}

type Status struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func Check(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := handler.Health(r.Context()); err != nil {
			log.With(sl.Module("http.handlers.health")).Warn("health check failed", sl.Err(err))
			resp := response.Error("Database unavailable")
			resp.Data = Status{Status: "degraded", Database: "down"}
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, resp)
			return
		}
		render.JSON(w, r, response.Ok(Status{Status: "ok", Database: "ok"}))
	}
}
