package entity

import "fmt"

// Names of the unique indexes; duplicate-key failures report which one fired.
const (
	IndexMemberEmail   = "member_email"
	IndexMeetingCode   = "meeting_code"
	IndexMemberMeeting = "member_meeting"
	IndexDeviceMeeting = "device_meeting"
)

// DuplicateError is returned by storage when a unique index rejects a write.
type DuplicateError struct {
	Index string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate key: %s", e.Index)
}
