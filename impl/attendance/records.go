package attendance

import (
	"context"
	"qrattend/entity"
	"qrattend/lib/apperr"
)

type ReportDatabase interface {
	GetMeeting(ctx context.Context, id string) (*entity.Meeting, error)
	GetMeetingAttendance(ctx context.Context, meetingId string) ([]*entity.Attendance, error)
	GetMemberAttendance(ctx context.Context, memberId string) ([]*entity.Attendance, error)
	CountMeetingAttendance(ctx context.Context, meetingId string) (int64, error)
	CountAttendanceByMeeting(ctx context.Context) ([]*entity.MeetingCount, error)
	GetMembersByIds(ctx context.Context, ids []string) ([]*entity.Member, error)
	GetMeetingsByIds(ctx context.Context, ids []string) ([]*entity.Meeting, error)
}

// Reports reads attendance joined with members and meetings.
type Reports struct {
	db ReportDatabase
}

func NewReports(db ReportDatabase) *Reports {
	return &Reports{db: db}
}

// ByMeeting returns the meeting's records, newest first, each with its member.
func (r *Reports) ByMeeting(ctx context.Context, meetingId string) ([]*entity.AttendanceRecord, error) {
	rows, err := r.db.GetMeetingAttendance(ctx, meetingId)
	if err != nil {
		return nil, err
	}
	return r.join(ctx, rows, true)
}

// ByMember is a member's own history; device addresses are left out.
func (r *Reports) ByMember(ctx context.Context, memberId string) ([]*entity.AttendanceRecord, error) {
	rows, err := r.db.GetMemberAttendance(ctx, memberId)
	if err != nil {
		return nil, err
	}
	records, err := r.join(ctx, rows, false)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		record.Member = nil
		record.DeviceIP = ""
	}
	return records, nil
}

func (r *Reports) Count(ctx context.Context, meetingId string) (int64, error) {
	return r.db.CountMeetingAttendance(ctx, meetingId)
}

func (r *Reports) PerMeeting(ctx context.Context) ([]*entity.MeetingCount, error) {
	return r.db.CountAttendanceByMeeting(ctx)
}

// Export returns the meeting and its records in scan order. A meeting
// without attendance is reported as not found, there is nothing to export.
func (r *Reports) Export(ctx context.Context, meetingId string) (*entity.Meeting, []*entity.AttendanceRecord, error) {
	meeting, err := r.db.GetMeeting(ctx, meetingId)
	if err != nil {
		return nil, nil, err
	}
	records, err := r.ByMeeting(ctx, meetingId)
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, apperr.NotFound("No attendance data")
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if meeting == nil {
		meeting = &entity.Meeting{Id: meetingId}
	}
	return meeting, records, nil
}

func (r *Reports) join(ctx context.Context, rows []*entity.Attendance, withMembers bool) ([]*entity.AttendanceRecord, error) {
	var memberIds, meetingIds []string
	seenMember := make(map[string]bool)
	seenMeeting := make(map[string]bool)
	for _, row := range rows {
		if withMembers && !seenMember[row.MemberId] {
			seenMember[row.MemberId] = true
			memberIds = append(memberIds, row.MemberId)
		}
		if !seenMeeting[row.MeetingId] {
			seenMeeting[row.MeetingId] = true
			meetingIds = append(meetingIds, row.MeetingId)
		}
	}

	members := make(map[string]*entity.MemberInfo)
	if len(memberIds) > 0 {
		list, err := r.db.GetMembersByIds(ctx, memberIds)
		if err != nil {
			return nil, err
		}
		for _, m := range list {
			members[m.Id] = m.Info()
		}
	}
	meetings := make(map[string]*entity.MeetingInfo)
	if len(meetingIds) > 0 {
		list, err := r.db.GetMeetingsByIds(ctx, meetingIds)
		if err != nil {
			return nil, err
		}
		for _, m := range list {
			meetings[m.Id] = m.Info()
		}
	}

	records := make([]*entity.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, &entity.AttendanceRecord{
			Id:              row.Id,
			Member:          members[row.MemberId],
			Meeting:         meetings[row.MeetingId],
			Location:        row.Location,
			DeviceIP:        row.DeviceIP,
			MemberLatitude:  row.MemberLatitude,
			MemberLongitude: row.MemberLongitude,
			Timestamp:       row.Timestamp,
		})
	}
	return records, nil
}
