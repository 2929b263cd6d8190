package database

import (
	"context"
	"qrattend/entity"
)

// Store is the full persistence surface of the service. Lookups return
// nil, nil when nothing matches; writes that violate a unique index return
// *entity.DuplicateError.
type Store interface {
	Ping(ctx context.Context) error

	SaveMember(ctx context.Context, member *entity.Member) error
	GetMemberById(ctx context.Context, id string) (*entity.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (*entity.Member, error)
	GetMembers(ctx context.Context) ([]*entity.Member, error)
	GetMembersByIds(ctx context.Context, ids []string) ([]*entity.Member, error)
	UpdateMemberProfile(ctx context.Context, member *entity.Member) error
	SaveMemberSession(ctx context.Context, id, token, ip string) error
	ClearMemberSession(ctx context.Context, id string) error
	DeleteMember(ctx context.Context, id string) error
	CountMembers(ctx context.Context) (int64, error)
	CountMembersByRole(ctx context.Context) ([]*entity.RoleCount, error)

	SaveMeeting(ctx context.Context, meeting *entity.Meeting) error
	GetMeeting(ctx context.Context, id string) (*entity.Meeting, error)
	GetMeetingByCode(ctx context.Context, code string) (*entity.Meeting, error)
	GetMeetings(ctx context.Context, limit int64) ([]*entity.Meeting, error)
	GetMeetingsByIds(ctx context.Context, ids []string) ([]*entity.Meeting, error)
	MeetingCodeExists(ctx context.Context, code string) (bool, error)
	UpdateMeeting(ctx context.Context, meeting *entity.Meeting) error
	DeleteMeeting(ctx context.Context, id string) error
	CountMeetings(ctx context.Context, activeOnly bool) (int64, error)

	SaveAttendance(ctx context.Context, attendance *entity.Attendance) error
	AttendanceExists(ctx context.Context, memberId, meetingId string) (bool, error)
	DeviceAttendanceExists(ctx context.Context, device, meetingId string) (bool, error)
	GetMeetingAttendance(ctx context.Context, meetingId string) ([]*entity.Attendance, error)
	GetMemberAttendance(ctx context.Context, memberId string) ([]*entity.Attendance, error)
	CountMeetingAttendance(ctx context.Context, meetingId string) (int64, error)
	CountMemberAttendance(ctx context.Context, memberId string) (int64, error)
	CountAllAttendance(ctx context.Context) (int64, error)
	CountAttendanceByMeeting(ctx context.Context) ([]*entity.MeetingCount, error)
	DeleteMeetingAttendance(ctx context.Context, meetingId string) error
	DeleteMemberAttendance(ctx context.Context, memberId string) error
}
