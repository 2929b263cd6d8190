package database

import (
	"context"
	"qrattend/entity"
	"sort"
	"sync"
	"time"
)

// Memory is a process-local Store with the same unique constraints as the
// MongoDB indexes. It backs local runs with mongo disabled, and the tests.
type Memory struct {
	mu         sync.RWMutex
	members    map[string]entity.Member
	meetings   map[string]entity.Meeting
	attendance map[string]entity.Attendance
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		members:    make(map[string]entity.Member),
		meetings:   make(map[string]entity.Meeting),
		attendance: make(map[string]entity.Attendance),
	}
}

func (m *Memory) Ping(_ context.Context) error {
	return nil
}

func (m *Memory) SaveMember(_ context.Context, member *entity.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.members {
		if other.Email == member.Email {
			return &entity.DuplicateError{Index: entity.IndexMemberEmail}
		}
	}
	m.members[member.Id] = *member
	return nil
}

func (m *Memory) GetMemberById(_ context.Context, id string) (*entity.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[id]
	if !ok {
		return nil, nil
	}
	return &member, nil
}

func (m *Memory) GetMemberByEmail(_ context.Context, email string) (*entity.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = entity.NormalizeEmail(email)
	for _, member := range m.members {
		if member.Email == email {
			return &member, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetMembers(_ context.Context) ([]*entity.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := make([]*entity.Member, 0, len(m.members))
	for _, member := range m.members {
		members = append(members, &member)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].CreatedAt.After(members[j].CreatedAt)
	})
	return members, nil
}

func (m *Memory) GetMembersByIds(_ context.Context, ids []string) ([]*entity.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := make([]*entity.Member, 0, len(ids))
	for _, id := range ids {
		if member, ok := m.members[id]; ok {
			members = append(members, &member)
		}
	}
	return members, nil
}

func (m *Memory) UpdateMemberProfile(_ context.Context, member *entity.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.members[member.Id]
	if !ok {
		return nil
	}
	for id, other := range m.members {
		if id != member.Id && other.Email == member.Email {
			return &entity.DuplicateError{Index: entity.IndexMemberEmail}
		}
	}
	stored.Name = member.Name
	stored.Email = member.Email
	stored.Role = member.Role
	stored.Password = member.Password
	stored.UpdatedAt = member.UpdatedAt
	m.members[member.Id] = stored
	return nil
}

func (m *Memory) SaveMemberSession(_ context.Context, id, token, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.members[id]
	if !ok {
		return nil
	}
	stored.ActiveToken = token
	stored.ActiveIP = ip
	stored.UpdatedAt = time.Now().UTC()
	m.members[id] = stored
	return nil
}

func (m *Memory) ClearMemberSession(ctx context.Context, id string) error {
	return m.SaveMemberSession(ctx, id, "", "")
}

func (m *Memory) DeleteMember(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, id)
	return nil
}

func (m *Memory) CountMembers(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.members)), nil
}

func (m *Memory) CountMembersByRole(_ context.Context) ([]*entity.RoleCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byRole := make(map[entity.Role]int64)
	for _, member := range m.members {
		byRole[member.Role]++
	}
	counts := make([]*entity.RoleCount, 0, len(byRole))
	for role, count := range byRole {
		counts = append(counts, &entity.RoleCount{Role: role, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		return counts[i].Role < counts[j].Role
	})
	return counts, nil
}

func (m *Memory) SaveMeeting(_ context.Context, meeting *entity.Meeting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.meetings {
		if other.Code == meeting.Code {
			return &entity.DuplicateError{Index: entity.IndexMeetingCode}
		}
	}
	stored := *meeting
	stored.Creator = nil
	m.meetings[meeting.Id] = stored
	return nil
}

func (m *Memory) GetMeeting(_ context.Context, id string) (*entity.Meeting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meeting, ok := m.meetings[id]
	if !ok {
		return nil, nil
	}
	return &meeting, nil
}

func (m *Memory) GetMeetingByCode(_ context.Context, code string) (*entity.Meeting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, meeting := range m.meetings {
		if meeting.Code == code {
			return &meeting, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetMeetings(_ context.Context, limit int64) ([]*entity.Meeting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meetings := make([]*entity.Meeting, 0, len(m.meetings))
	for _, meeting := range m.meetings {
		meetings = append(meetings, &meeting)
	}
	sort.Slice(meetings, func(i, j int) bool {
		return meetings[i].CreatedAt.After(meetings[j].CreatedAt)
	})
	if limit > 0 && int64(len(meetings)) > limit {
		meetings = meetings[:limit]
	}
	return meetings, nil
}

func (m *Memory) GetMeetingsByIds(_ context.Context, ids []string) ([]*entity.Meeting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meetings := make([]*entity.Meeting, 0, len(ids))
	for _, id := range ids {
		if meeting, ok := m.meetings[id]; ok {
			meetings = append(meetings, &meeting)
		}
	}
	return meetings, nil
}

func (m *Memory) MeetingCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, meeting := range m.meetings {
		if meeting.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) UpdateMeeting(_ context.Context, meeting *entity.Meeting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.meetings[meeting.Id]; !ok {
		return nil
	}
	stored := *meeting
	stored.Creator = nil
	m.meetings[meeting.Id] = stored
	return nil
}

func (m *Memory) DeleteMeeting(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.meetings, id)
	return nil
}

func (m *Memory) CountMeetings(_ context.Context, activeOnly bool) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, meeting := range m.meetings {
		if !activeOnly || meeting.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *Memory) SaveAttendance(_ context.Context, attendance *entity.Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.attendance {
		if other.MeetingId == attendance.MeetingId && other.MemberId == attendance.MemberId {
			return &entity.DuplicateError{Index: entity.IndexMemberMeeting}
		}
	}
	for _, other := range m.attendance {
		if other.MeetingId == attendance.MeetingId && other.DeviceIP == attendance.DeviceIP {
			return &entity.DuplicateError{Index: entity.IndexDeviceMeeting}
		}
	}
	m.attendance[attendance.Id] = *attendance
	return nil
}

func (m *Memory) AttendanceExists(_ context.Context, memberId, meetingId string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attendance {
		if a.MemberId == memberId && a.MeetingId == meetingId {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) DeviceAttendanceExists(_ context.Context, device, meetingId string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attendance {
		if a.DeviceIP == device && a.MeetingId == meetingId {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) filterAttendance(match func(a *entity.Attendance) bool) []*entity.Attendance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]*entity.Attendance, 0)
	for _, a := range m.attendance {
		if match(&a) {
			records = append(records, &a)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records
}

func (m *Memory) GetMeetingAttendance(_ context.Context, meetingId string) ([]*entity.Attendance, error) {
	return m.filterAttendance(func(a *entity.Attendance) bool {
		return a.MeetingId == meetingId
	}), nil
}

func (m *Memory) GetMemberAttendance(_ context.Context, memberId string) ([]*entity.Attendance, error) {
	return m.filterAttendance(func(a *entity.Attendance) bool {
		return a.MemberId == memberId
	}), nil
}

func (m *Memory) CountMeetingAttendance(ctx context.Context, meetingId string) (int64, error) {
	records, _ := m.GetMeetingAttendance(ctx, meetingId)
	return int64(len(records)), nil
}

func (m *Memory) CountMemberAttendance(ctx context.Context, memberId string) (int64, error) {
	records, _ := m.GetMemberAttendance(ctx, memberId)
	return int64(len(records)), nil
}

func (m *Memory) CountAllAttendance(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.attendance)), nil
}

func (m *Memory) CountAttendanceByMeeting(_ context.Context) ([]*entity.MeetingCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byMeeting := make(map[string]int64)
	for _, a := range m.attendance {
		byMeeting[a.MeetingId]++
	}
	counts := make([]*entity.MeetingCount, 0, len(byMeeting))
	for id, count := range byMeeting {
		counts = append(counts, &entity.MeetingCount{MeetingId: id, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count == counts[j].Count {
			return counts[i].MeetingId < counts[j].MeetingId
		}
		return counts[i].Count > counts[j].Count
	})
	return counts, nil
}

func (m *Memory) DeleteMeetingAttendance(_ context.Context, meetingId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.attendance {
		if a.MeetingId == meetingId {
			delete(m.attendance, id)
		}
	}
	return nil
}

func (m *Memory) DeleteMemberAttendance(_ context.Context, memberId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.attendance {
		if a.MemberId == memberId {
			delete(m.attendance, id)
		}
	}
	return nil
}
