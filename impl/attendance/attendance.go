// Package attendance decides whether a scan produces an attendance record.
//
// Checks run in a fixed order and the first failure is returned:
// meeting exists, meeting active, started, not ended, geofence (location
// present, then within radius), member not yet marked, device not yet used.
// The unique indexes in storage have the final word; a duplicate-key error
// on insert is reported exactly like the matching pre-check.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"qrattend/entity"
	"qrattend/lib/apperr"
	"qrattend/lib/geo"
	"qrattend/lib/sl"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Database interface {
	GetMeetingByCode(ctx context.Context, code string) (*entity.Meeting, error)
	AttendanceExists(ctx context.Context, memberId, meetingId string) (bool, error)
	DeviceAttendanceExists(ctx context.Context, device, meetingId string) (bool, error)
	SaveAttendance(ctx context.Context, attendance *entity.Attendance) error
}

// Locator turns a device address into a readable place name. It never fails;
// an empty string means unknown.
type Locator interface {
	Resolve(ctx context.Context, ip string) string
}

// Scan is one attempt to mark attendance.
type Scan struct {
	Code      string
	MemberId  string
	Device    string
	Latitude  *float64
	Longitude *float64
	Now       time.Time
}

func (s *Scan) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}

type Evaluator struct {
	db      Database
	locator Locator
	log     *slog.Logger
}

func New(db Database, locator Locator, log *slog.Logger) *Evaluator {
	return &Evaluator{
		db:      db,
		locator: locator,
		log:     log.With(sl.Module("impl.attendance")),
	}
}

// Eligible runs the meeting-state, time-window and geofence checks.
// Both window boundaries are inclusive.
func Eligible(meeting *entity.Meeting, scan *Scan) error {
	if meeting == nil {
		return apperr.ErrMeetingNotFound
	}
	if !meeting.IsActive {
		return apperr.ErrMeetingInactive
	}
	if scan.Now.Before(meeting.StartTime) {
		return apperr.ErrNotStarted
	}
	if scan.Now.After(meeting.EndTime) {
		return apperr.ErrExpired
	}
	if meeting.HasGeofence() {
		if !scan.HasLocation() {
			return apperr.ErrLocationRequired
		}
		distance := geo.DistanceMeters(*meeting.Latitude, *meeting.Longitude, *scan.Latitude, *scan.Longitude)
		if distance > meeting.AllowedRadius {
			return apperr.OutOfRange(distance, meeting.AllowedRadius)
		}
	}
	return nil
}

func (e *Evaluator) Mark(ctx context.Context, scan *Scan) (*entity.Attendance, error) {
	if e.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	log := e.log.With(
		slog.String("member_id", scan.MemberId),
		slog.String("device", scan.Device),
	)

	meeting, err := e.db.GetMeetingByCode(ctx, strings.TrimSpace(scan.Code))
	if err != nil {
		return nil, err
	}
	if err = Eligible(meeting, scan); err != nil {
		return nil, err
	}
	log = log.With(slog.String("meeting_id", meeting.Id))

	marked, err := e.db.AttendanceExists(ctx, scan.MemberId, meeting.Id)
	if err != nil {
		return nil, err
	}
	if marked {
		return nil, apperr.ErrAlreadyMarked
	}
	used, err := e.db.DeviceAttendanceExists(ctx, scan.Device, meeting.Id)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, apperr.ErrDuplicateDevice
	}

	record := &entity.Attendance{
		Id:        uuid.NewString(),
		MemberId:  scan.MemberId,
		MeetingId: meeting.Id,
		DeviceIP:  scan.Device,
		Timestamp: scan.Now,
	}
	if scan.HasLocation() {
		record.MemberLatitude = scan.Latitude
		record.MemberLongitude = scan.Longitude
	}
	if e.locator != nil {
		record.Location = e.locator.Resolve(ctx, scan.Device)
	}

	if err = e.db.SaveAttendance(ctx, record); err != nil {
		var dup *entity.DuplicateError
		if errors.As(err, &dup) {
			log.With(slog.String("index", dup.Index)).Debug("concurrent scan rejected by index")
			if dup.Index == entity.IndexDeviceMeeting {
				return nil, apperr.ErrDuplicateDevice
			}
			return nil, apperr.ErrAlreadyMarked
		}
		return nil, fmt.Errorf("save attendance: %w", err)
	}
	log.With(slog.String("location", record.Location)).Info("attendance marked")

	return record, nil
}
