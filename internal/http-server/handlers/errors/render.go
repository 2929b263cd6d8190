package errors

import (
	"fmt"
	"log/slog"
	"net/http"
	"qrattend/lib/api/response"
	"qrattend/lib/apperr"
	"qrattend/lib/sl"

	"github.com/go-chi/render"
)

// Render writes err as an error response. Domain errors keep their message
// and code; anything else is logged and hidden behind a generic 500.
func Render(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	if e := apperr.As(err); e != nil {
		log.With(
			slog.String("code", e.Code),
			slog.String("reason", e.Message),
		).Info("request rejected")
		render.Status(r, response.Status(e))
		render.JSON(w, r, response.Fail(e))
		return
	}
	log.Error("request failed", sl.Err(err))
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, response.Error("Internal server error"))
}

// BadRequest reports a body that could not be decoded or validated.
func BadRequest(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	log.Debug("bind request", sl.Err(err))
	e := apperr.Validation(fmt.Sprintf("Invalid request: %v", err))
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, response.Fail(e))
}
