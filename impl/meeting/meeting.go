package meeting

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"qrattend/entity"
	"qrattend/lib/apperr"
	"qrattend/lib/sl"
	"time"

	"github.com/google/uuid"
)

// codeAttempts bounds the search for a free scan code.
const codeAttempts = 20

const recentLimit = 5

type Database interface {
	SaveMeeting(ctx context.Context, meeting *entity.Meeting) error
	GetMeeting(ctx context.Context, id string) (*entity.Meeting, error)
	GetMeetings(ctx context.Context, limit int64) ([]*entity.Meeting, error)
	MeetingCodeExists(ctx context.Context, code string) (bool, error)
	UpdateMeeting(ctx context.Context, meeting *entity.Meeting) error
	DeleteMeeting(ctx context.Context, id string) error
	CountMeetings(ctx context.Context, activeOnly bool) (int64, error)
	GetMembersByIds(ctx context.Context, ids []string) ([]*entity.Member, error)
	CountMeetingAttendance(ctx context.Context, meetingId string) (int64, error)
	CountAllAttendance(ctx context.Context) (int64, error)
	DeleteMeetingAttendance(ctx context.Context, meetingId string) error
}

type Meetings struct {
	db      Database
	log     *slog.Logger
	now     func() time.Time
	newCode func() (string, error)
}

func New(db Database, log *slog.Logger) *Meetings {
	return &Meetings{
		db:      db,
		log:     log.With(sl.Module("impl.meeting")),
		now:     func() time.Time { return time.Now().UTC() },
		newCode: randomCode,
	}
}

// randomCode returns six decimal digits without a leading zero.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

func (m *Meetings) Create(ctx context.Context, req *entity.MeetingCreate, creator *entity.Member) (*entity.Meeting, error) {
	if !req.EndTime.After(*req.StartTime) {
		return nil, apperr.Validation("End time must be after start time")
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, apperr.Validation("Latitude and longitude must be set together")
	}

	now := m.now()
	meeting := &entity.Meeting{
		Id:            uuid.NewString(),
		Title:         req.Title,
		Type:          req.Type,
		StartTime:     req.StartTime.UTC(),
		EndTime:       req.EndTime.UTC(),
		IsActive:      true,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		AllowedRadius: entity.DefaultRadius,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.AllowedRadius != nil {
		meeting.AllowedRadius = *req.AllowedRadius
	}
	if creator != nil {
		meeting.CreatedBy = creator.Id
		meeting.Creator = creator.Info()
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := m.freeCode(ctx)
		if err != nil {
			return nil, err
		}
		meeting.Code = code
		err = m.db.SaveMeeting(ctx, meeting)
		if err == nil {
			m.log.With(
				slog.String("meeting_id", meeting.Id),
				slog.String("code", meeting.Code),
				slog.Bool("geofence", meeting.HasGeofence()),
			).Info("meeting created")
			return meeting, nil
		}
		var dup *entity.DuplicateError
		if !errors.As(err, &dup) || dup.Index != entity.IndexMeetingCode {
			return nil, fmt.Errorf("save meeting: %w", err)
		}
		m.log.With(slog.String("code", code)).Debug("scan code taken on insert, retrying")
	}
	return nil, fmt.Errorf("no free scan code after %d attempts", codeAttempts)
}

// freeCode draws codes until one is not used by any stored meeting.
func (m *Meetings) freeCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := m.newCode()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		exists, err := m.db.MeetingCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free scan code after %d attempts", codeAttempts)
}

func (m *Meetings) find(ctx context.Context, id string) (*entity.Meeting, error) {
	meeting, err := m.db.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if meeting == nil {
		return nil, apperr.NotFound("Meeting not found")
	}
	return meeting, nil
}

// Get returns the meeting with its creator and the number of attendees.
func (m *Meetings) Get(ctx context.Context, id string) (*entity.MeetingDetails, error) {
	meeting, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = m.attachCreators(ctx, []*entity.Meeting{meeting}); err != nil {
		return nil, err
	}
	count, err := m.db.CountMeetingAttendance(ctx, meeting.Id)
	if err != nil {
		return nil, err
	}
	return &entity.MeetingDetails{Meeting: meeting, AttendeeCount: count}, nil
}

// List returns all meetings, newest first.
func (m *Meetings) List(ctx context.Context) ([]*entity.Meeting, error) {
	meetings, err := m.db.GetMeetings(ctx, 0)
	if err != nil {
		return nil, err
	}
	if err = m.attachCreators(ctx, meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

func (m *Meetings) attachCreators(ctx context.Context, meetings []*entity.Meeting) error {
	ids := make([]string, 0, len(meetings))
	for _, meeting := range meetings {
		if meeting.CreatedBy != "" {
			ids = append(ids, meeting.CreatedBy)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	members, err := m.db.GetMembersByIds(ctx, ids)
	if err != nil {
		return err
	}
	byId := make(map[string]*entity.MemberInfo, len(members))
	for _, member := range members {
		info := member.Info()
		info.Role = ""
		byId[member.Id] = info
	}
	for _, meeting := range meetings {
		meeting.Creator = byId[meeting.CreatedBy]
	}
	return nil
}

func (m *Meetings) Update(ctx context.Context, id string, req *entity.MeetingUpdate) (*entity.Meeting, error) {
	meeting, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		meeting.Title = req.Title
	}
	if req.Type != "" {
		meeting.Type = req.Type
	}
	if req.StartTime != nil {
		meeting.StartTime = req.StartTime.UTC()
	}
	if req.EndTime != nil {
		meeting.EndTime = req.EndTime.UTC()
	}
	if !meeting.EndTime.After(meeting.StartTime) {
		return nil, apperr.Validation("End time must be after start time")
	}

	switch {
	case req.SetsCenter():
		meeting.Latitude = req.Latitude.Value
		meeting.Longitude = req.Longitude.Value
	case req.ClearsCenter():
		meeting.Latitude = nil
		meeting.Longitude = nil
	case req.Latitude.Value != nil || req.Longitude.Value != nil:
		return nil, apperr.Validation("Latitude and longitude must be set together")
	}
	if req.AllowedRadius != nil {
		meeting.AllowedRadius = *req.AllowedRadius
	}
	if meeting.AllowedRadius <= 0 {
		meeting.AllowedRadius = entity.DefaultRadius
	}
	meeting.UpdatedAt = m.now()

	if err = m.db.UpdateMeeting(ctx, meeting); err != nil {
		return nil, fmt.Errorf("update meeting: %w", err)
	}
	m.log.With(
		slog.String("meeting_id", meeting.Id),
		slog.Bool("geofence", meeting.HasGeofence()),
	).Info("meeting updated")
	return meeting, nil
}

// Delete removes the meeting together with its attendance records.
func (m *Meetings) Delete(ctx context.Context, id string) error {
	meeting, err := m.find(ctx, id)
	if err != nil {
		return err
	}
	if err = m.db.DeleteMeetingAttendance(ctx, meeting.Id); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	if err = m.db.DeleteMeeting(ctx, meeting.Id); err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	m.log.With(slog.String("meeting_id", meeting.Id)).Info("meeting deleted")
	return nil
}

func (m *Meetings) Toggle(ctx context.Context, id string) (*entity.Meeting, error) {
	meeting, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}
	meeting.IsActive = !meeting.IsActive
	meeting.UpdatedAt = m.now()
	if err = m.db.UpdateMeeting(ctx, meeting); err != nil {
		return nil, fmt.Errorf("update meeting: %w", err)
	}
	m.log.With(
		slog.String("meeting_id", meeting.Id),
		slog.Bool("active", meeting.IsActive),
	).Info("meeting toggled")
	return meeting, nil
}

// SetVenue places the geofence center, keeping the configured radius.
func (m *Meetings) SetVenue(ctx context.Context, id string, venue *entity.VenueLocation) (*entity.Meeting, error) {
	if venue.Latitude == nil || venue.Longitude == nil {
		return nil, apperr.Validation("Latitude and longitude are required")
	}
	meeting, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}
	meeting.Latitude = venue.Latitude
	meeting.Longitude = venue.Longitude
	if meeting.AllowedRadius <= 0 {
		meeting.AllowedRadius = entity.DefaultRadius
	}
	meeting.UpdatedAt = m.now()
	if err = m.db.UpdateMeeting(ctx, meeting); err != nil {
		return nil, fmt.Errorf("update meeting: %w", err)
	}
	m.log.With(slog.String("meeting_id", meeting.Id)).Info("venue location set")
	return meeting, nil
}

func (m *Meetings) Stats(ctx context.Context) (*entity.MeetingStats, error) {
	total, err := m.db.CountMeetings(ctx, false)
	if err != nil {
		return nil, err
	}
	active, err := m.db.CountMeetings(ctx, true)
	if err != nil {
		return nil, err
	}
	attendance, err := m.db.CountAllAttendance(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := m.db.GetMeetings(ctx, recentLimit)
	if err != nil {
		return nil, err
	}
	if err = m.attachCreators(ctx, recent); err != nil {
		return nil, err
	}
	return &entity.MeetingStats{
		TotalMeetings:   total,
		ActiveMeetings:  active,
		TotalAttendance: attendance,
		RecentMeetings:  recent,
	}, nil
}
