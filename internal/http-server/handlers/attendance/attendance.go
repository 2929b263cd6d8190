package attendance

import (
	"bytes"
	"context"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"io"
	"log/slog"
	"net/http"
	"qrattend/entity"
	"qrattend/internal/export"
	"qrattend/internal/http-server/handlers/errors"
	"qrattend/lib/api/cont"
	"qrattend/lib/api/response"
	"qrattend/lib/sl"
)

type Core interface {
	MarkAttendance(ctx context.Context, member *entity.Member, device string, req *entity.AttendanceRequest) (*entity.Attendance, error)
	AttendanceStats(ctx context.Context) ([]*entity.MeetingCount, error)
	MeetingAttendance(ctx context.Context, meetingId string) ([]*entity.AttendanceRecord, error)
	MemberAttendance(ctx context.Context, member *entity.Member) ([]*entity.AttendanceRecord, error)
	AttendanceCount(ctx context.Context, meetingId string) (int64, error)
	AttendanceExport(ctx context.Context, meetingId string) (*entity.Meeting, []*entity.AttendanceRecord, error)
}

type Count struct {
	Count int64 `json:"count"`
}

func reqLogger(log *slog.Logger, r *http.Request) *slog.Logger {
	return log.With(
		sl.Module("http.handlers.attendance"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Mark records the caller's attendance for the meeting behind the scanned code.
func Mark(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		device := cont.GetDevice(r.Context())
		logger := reqLogger(log, r).With(slog.String("device", device))

		var req entity.AttendanceRequest
		if err := render.Bind(r, &req); err != nil {
			errors.BadRequest(w, r, logger, err)
			return
		}
		logger = logger.With(
			slog.String("code", req.Code),
			slog.Bool("gps", req.Latitude != nil && req.Longitude != nil),
		)

		record, err := handler.MarkAttendance(r.Context(), cont.GetMember(r.Context()), device, &req)
		if err != nil {
			errors.Render(w, r, logger, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Message("Attendance marked successfully", record))
	}
}

func Stats(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := handler.AttendanceStats(r.Context())
		if err != nil {
			errors.Render(w, r, reqLogger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(stats))
	}
}

func ByMeeting(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := handler.MeetingAttendance(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			errors.Render(w, r, reqLogger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(records))
	}
}

func My(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := handler.MemberAttendance(r.Context(), cont.GetMember(r.Context()))
		if err != nil {
			errors.Render(w, r, reqLogger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(records))
	}
}

func CountLive(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := handler.AttendanceCount(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			errors.Render(w, r, reqLogger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(Count{Count: count}))
	}
}

type writer func(w io.Writer, records []*entity.AttendanceRecord) error

func ExportCSV(log *slog.Logger, handler Core) http.HandlerFunc {
	return exportFile(log, handler, "csv", export.ContentTypeCSV, export.CSV)
}

func ExportExcel(log *slog.Logger, handler Core) http.HandlerFunc {
	return exportFile(log, handler, "xlsx", export.ContentTypeXLSX, export.XLSX)
}

// exportFile renders the file into memory first, so a failure can still be
// answered with a JSON error instead of a truncated download.
func exportFile(log *slog.Logger, handler Core, ext, contentType string, write writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		logger := reqLogger(log, r).With(
			slog.String("meeting_id", id),
			slog.String("format", ext),
		)

		meeting, records, err := handler.AttendanceExport(r.Context(), id)
		if err != nil {
			errors.Render(w, r, logger, err)
			return
		}

		var buf bytes.Buffer
		if err = write(&buf, records); err != nil {
			errors.Render(w, r, logger, fmt.Errorf("write %s: %w", ext, err))
			return
		}
		logger.With(slog.Int("records", len(records))).Info("attendance exported")

		base := meeting.Title
		if ext == "csv" {
			base = meeting.Id
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(base, ext)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}
