package core

import (
	"context"
	"fmt"
	"log/slog"
	"qrattend/entity"
	"qrattend/impl/attendance"
	"qrattend/impl/auth"
	"qrattend/impl/meeting"
	"qrattend/impl/member"
	"qrattend/internal/database"
	"qrattend/lib/sl"
	"time"
)

// Core is the single entry point the HTTP handlers talk to.
type Core struct {
	db        database.Store
	auth      *auth.Auth
	evaluator *attendance.Evaluator
	reports   *attendance.Reports
	meetings  *meeting.Meetings
	members   *member.Members
	now       func() time.Time
	log       *slog.Logger
}

func New(db database.Store, tokens *auth.Tokens, passwords auth.Passwords, locator attendance.Locator, log *slog.Logger) *Core {
	if db == nil {
		panic("database is nil")
	}
	return &Core{
		db:        db,
		auth:      auth.New(db, tokens, passwords),
		evaluator: attendance.New(db, locator, log),
		reports:   attendance.NewReports(db),
		meetings:  meeting.New(db, log),
		members:   member.New(db, passwords, log),
		now:       func() time.Time { return time.Now().UTC() },
		log:       log.With(sl.Module("core")),
	}
}

// Health reports whether the database answers.
func (c *Core) Health(ctx context.Context) error {
	if err := c.db.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func (c *Core) AuthenticateByToken(ctx context.Context, token string) (*entity.Member, error) {
	return c.auth.Authenticate(ctx, token)
}

func (c *Core) Register(ctx context.Context, req *entity.Registration) (*entity.MemberInfo, error) {
	return c.members.Register(ctx, req)
}

func (c *Core) Login(ctx context.Context, req *entity.Credentials, origin string) (*entity.LoginResult, error) {
	return c.auth.Login(ctx, req.Email, req.Password, origin)
}

func (c *Core) Logout(ctx context.Context, member *entity.Member) error {
	if member == nil {
		return fmt.Errorf("no member in request")
	}
	if err := c.auth.Logout(ctx, member.Id); err != nil {
		return err
	}
	c.log.With(slog.String("member_id", member.Id)).Info("member logged out")
	return nil
}

func (c *Core) CreateMeeting(ctx context.Context, req *entity.MeetingCreate, creator *entity.Member) (*entity.Meeting, error) {
	return c.meetings.Create(ctx, req, creator)
}

func (c *Core) GetMeeting(ctx context.Context, id string) (*entity.MeetingDetails, error) {
	return c.meetings.Get(ctx, id)
}

func (c *Core) ListMeetings(ctx context.Context) ([]*entity.Meeting, error) {
	return c.meetings.List(ctx)
}

func (c *Core) UpdateMeeting(ctx context.Context, id string, req *entity.MeetingUpdate) (*entity.Meeting, error) {
	return c.meetings.Update(ctx, id, req)
}

func (c *Core) DeleteMeeting(ctx context.Context, id string) error {
	return c.meetings.Delete(ctx, id)
}

func (c *Core) ToggleMeeting(ctx context.Context, id string) (*entity.Meeting, error) {
	return c.meetings.Toggle(ctx, id)
}

func (c *Core) SetMeetingVenue(ctx context.Context, id string, venue *entity.VenueLocation) (*entity.Meeting, error) {
	return c.meetings.SetVenue(ctx, id, venue)
}

func (c *Core) MeetingStats(ctx context.Context) (*entity.MeetingStats, error) {
	return c.meetings.Stats(ctx)
}

// MarkAttendance evaluates a scan made by member from device at the current time.
func (c *Core) MarkAttendance(ctx context.Context, member *entity.Member, device string, req *entity.AttendanceRequest) (*entity.Attendance, error) {
	if member == nil {
		return nil, fmt.Errorf("no member in request")
	}
	return c.evaluator.Mark(ctx, &attendance.Scan{
		Code:      req.Code,
		MemberId:  member.Id,
		Device:    device,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Now:       c.now(),
	})
}

func (c *Core) AttendanceStats(ctx context.Context) ([]*entity.MeetingCount, error) {
	return c.reports.PerMeeting(ctx)
}

func (c *Core) MeetingAttendance(ctx context.Context, meetingId string) ([]*entity.AttendanceRecord, error) {
	return c.reports.ByMeeting(ctx, meetingId)
}

func (c *Core) MemberAttendance(ctx context.Context, member *entity.Member) ([]*entity.AttendanceRecord, error) {
	if member == nil {
		return nil, fmt.Errorf("no member in request")
	}
	return c.reports.ByMember(ctx, member.Id)
}

func (c *Core) AttendanceCount(ctx context.Context, meetingId string) (int64, error) {
	return c.reports.Count(ctx, meetingId)
}

func (c *Core) AttendanceExport(ctx context.Context, meetingId string) (*entity.Meeting, []*entity.AttendanceRecord, error) {
	return c.reports.Export(ctx, meetingId)
}

func (c *Core) ListMembers(ctx context.Context) ([]*entity.Member, error) {
	return c.members.List(ctx)
}

func (c *Core) GetMember(ctx context.Context, id string) (*entity.MemberDetails, error) {
	return c.members.Get(ctx, id)
}

func (c *Core) CreateMember(ctx context.Context, req *entity.MemberCreate) (*entity.MemberInfo, error) {
	return c.members.Create(ctx, req)
}

func (c *Core) UpdateMember(ctx context.Context, id string, req *entity.MemberUpdate) (*entity.MemberInfo, error) {
	return c.members.Update(ctx, id, req)
}

func (c *Core) DeleteMember(ctx context.Context, id string, actor *entity.Member) error {
	return c.members.Delete(ctx, id, actor)
}

func (c *Core) MemberStats(ctx context.Context) (*entity.MemberStats, error) {
	return c.members.Stats(ctx)
}
