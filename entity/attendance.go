package entity

import (
	"net/http"
	"qrattend/lib/validate"
	"time"
)

// Attendance is written once per accepted scan and never updated.
// (MemberId, MeetingId) and (DeviceIP, MeetingId) are both unique.
type Attendance struct {
	Id              string    `json:"id" bson:"_id"`
	MemberId        string    `json:"member_id" bson:"member_id"`
	MeetingId       string    `json:"meeting_id" bson:"meeting_id"`
	Location        string    `json:"location,omitempty" bson:"location,omitempty"`
	DeviceIP        string    `json:"device_ip" bson:"device_ip"`
	MemberLatitude  *float64  `json:"member_latitude" bson:"member_latitude"`
	MemberLongitude *float64  `json:"member_longitude" bson:"member_longitude"`
	Timestamp       time.Time `json:"timestamp" bson:"timestamp"`
}

// AttendanceRecord is an Attendance joined with its member and meeting.
type AttendanceRecord struct {
	Id              string       `json:"id"`
	Member          *MemberInfo  `json:"member,omitempty"`
	Meeting         *MeetingInfo `json:"meeting,omitempty"`
	Location        string       `json:"location,omitempty"`
	DeviceIP        string       `json:"device_ip,omitempty"`
	MemberLatitude  *float64     `json:"member_latitude"`
	MemberLongitude *float64     `json:"member_longitude"`
	Timestamp       time.Time    `json:"timestamp"`
}

type MeetingCount struct {
	MeetingId string `json:"meeting_id" bson:"_id"`
	Count     int64  `json:"count" bson:"count"`
}

type AttendanceRequest struct {
	Code      string   `json:"code" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

func (a *AttendanceRequest) Bind(_ *http.Request) error {
	return validate.Struct(a)
}
