package meeting

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
	CreateMeeting(ctx context.Context, req *entity.MeetingCreate, creator *entity.Member) (*entity.Meeting, error)
	GetMeeting(ctx context.Context, id string) (*entity.MeetingDetails, error)
	ListMeetings(ctx context.Context) ([]*entity.Meeting, error)
	UpdateMeeting(ctx context.Context, id string, req *entity.MeetingUpdate) (*entity.Meeting, error)
	DeleteMeeting(ctx context.Context, id string) error
	ToggleMeeting(ctx context.Context, id string) (*entity.Meeting, error)
	SetMeetingVenue(ctx context.Context, id string, venue *entity.VenueLocation) (*entity.Meeting, error)
	MeetingStats(ctx context.Context) (*entity.MeetingStats, error)
}

func reqLogger(log *slog.Logger, r *http.Request) *slog.Logger {
	return log.With(
		sl.Module("http.handlers.meeting"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := reqLogger(log, r)

		var req entity.MeetingCreate
		if err := render.Bind(r, &req); err != nil {
			errors.BadRequest(w, r, logger, err)
			return
		}

		meeting, err := handler.CreateMeeting(r.Context(), &req, cont.GetMember(r.Context()))
		if err != nil {
			errors.Render(w, r, logger, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Message("Meeting created", meeting))
	}
}

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meetings, err := handler.ListMeetings(r.Context())
		if err != nil {
			errors.Render(w, r, reqLogger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(meetings))
	}
}

func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		details, err := handler.GetMeeting(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			errors.Render(w, r, reqLogger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(details))
	}
}

func Update(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		logger := reqLogger(log, r).With(slog.String("meeting_id", id))

		var req entity.MeetingUpdate
		if err := render.Bind(r, &req); err != nil {
			errors.BadRequest(w, r, logger, err)
			return
		}

		meeting, err := handler.UpdateMeeting(r.Context(), id, &req)
		if err != nil {
			errors.Render(w, r, logger, err)
			return
		}
		render.JSON(w, r, response.Message("Meeting updated", meeting))
	}
}

func Delete(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := handler.DeleteMeeting(r.Context(), id); err != nil {
			errors.Render(w, r, reqLogger(log, r).With(slog.String("meeting_id", id)), err)
			return
		}
		render.JSON(w, r, response.Message("Meeting deleted", nil))
	}
}

func Toggle(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		meeting, err := handler.ToggleMeeting(r.Context(), id)
		if err != nil {
			errors.Render(w, r, reqLogger(log, r).With(slog.String("meeting_id", id)), err)
			return
		}
		message := "Meeting Deactivated"
		if meeting.IsActive {
			message = "Meeting Activated"
		}
		render.JSON(w, r, response.Message(message, meeting))
	}
}

// SetLocation places the geofence center, usually from the caller's own GPS fix at the venue.
func SetLocation(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		logger := reqLogger(log, r).With(slog.String("meeting_id", id))

		var venue entity.VenueLocation
		if err := render.Bind(r, &venue); err != nil {
			errors.BadRequest(w, r, logger, err)
			return
		}

		meeting, err := handler.SetMeetingVenue(r.Context(), id, &venue)
		if err != nil {
			errors.Render(w, r, logger, err)
			return
		}
		render.JSON(w, r, response.Message("Venue location updated, geofence is now active", meeting))
	}
}

func Stats(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := handler.MeetingStats(r.Context())
		if err != nil {
			errors.Render(w, r, reqLogger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(stats))
	}
}
