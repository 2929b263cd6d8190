package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"qrattend/lib/validate"
	"time"
)

type MeetingType string

const (
	MeetingOffline MeetingType = "offline"
	MeetingOnline  MeetingType = "online"
)

// DefaultRadius is the geofence radius in meters used when none is given.
const DefaultRadius = 500.0

// Meeting is a scannable session. The geofence is active only when both
// Latitude and Longitude are set; AllowedRadius alone has no effect.
type Meeting struct {
	Id            string      `json:"id" bson:"_id"`
	Title         string      `json:"title" bson:"title"`
	Type          MeetingType `json:"type" bson:"type"`
	Code          string      `json:"code" bson:"code"`
	StartTime     time.Time   `json:"start_time" bson:"start_time"`
	EndTime       time.Time   `json:"end_time" bson:"end_time"`
	IsActive      bool        `json:"is_active" bson:"is_active"`
	CreatedBy     string      `json:"created_by,omitempty" bson:"created_by,omitempty"`
	Creator       *MemberInfo `json:"creator,omitempty" bson:"-"`
	Latitude      *float64    `json:"latitude" bson:"latitude"`
	Longitude     *float64    `json:"longitude" bson:"longitude"`
	AllowedRadius float64     `json:"allowed_radius" bson:"allowed_radius"`
	CreatedAt     time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" bson:"updated_at"`
}

func (m *Meeting) HasGeofence() bool {
	return m.Latitude != nil && m.Longitude != nil
}

func (m *Meeting) Info() *MeetingInfo {
	return &MeetingInfo{
		Id:        m.Id,
		Title:     m.Title,
		Type:      m.Type,
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
	}
}

type MeetingInfo struct {
	Id        string      `json:"id"`
	Title     string      `json:"title"`
	Type      MeetingType `json:"type"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
}

type MeetingDetails struct {
	Meeting       *Meeting `json:"meeting"`
	AttendeeCount int64    `json:"attendee_count"`
}

type MeetingStats struct {
	TotalMeetings   int64      `json:"total_meetings"`
	ActiveMeetings  int64      `json:"active_meetings"`
	TotalAttendance int64      `json:"total_attendance"`
	RecentMeetings  []*Meeting `json:"recent_meetings"`
}

type MeetingCreate struct {
	Title         string      `json:"title" validate:"required"`
	Type          MeetingType `json:"type" validate:"required,oneof=offline online"`
	StartTime     *time.Time  `json:"start_time" validate:"required"`
	EndTime       *time.Time  `json:"end_time" validate:"required"`
	Latitude      *float64    `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude     *float64    `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	AllowedRadius *float64    `json:"allowed_radius" validate:"omitempty,gt=0"`
}

func (m *MeetingCreate) Bind(_ *http.Request) error {
	return validate.Struct(m)
}

// MeetingUpdate is a partial update. Latitude and Longitude distinguish an
// absent key from an explicit null: both null clears the geofence center.
type MeetingUpdate struct {
	Title         string        `json:"title" validate:"omitempty"`
	Type          MeetingType   `json:"type" validate:"omitempty,oneof=offline online"`
	StartTime     *time.Time    `json:"start_time" validate:"omitempty"`
	EndTime       *time.Time    `json:"end_time" validate:"omitempty"`
	Latitude      OptionalFloat `json:"latitude"`
	Longitude     OptionalFloat `json:"longitude"`
	AllowedRadius *float64      `json:"allowed_radius" validate:"omitempty,gt=0"`
}

func (m *MeetingUpdate) Bind(_ *http.Request) error {
	if err := validate.Struct(m); err != nil {
		return err
	}
	if m.Latitude.Value != nil && (*m.Latitude.Value < -90 || *m.Latitude.Value > 90) {
		return fmt.Errorf("latitude out of range")
	}
	if m.Longitude.Value != nil && (*m.Longitude.Value < -180 || *m.Longitude.Value > 180) {
		return fmt.Errorf("longitude out of range")
	}
	return nil
}

// SetsCenter reports whether the update carries a full geofence center.
func (m *MeetingUpdate) SetsCenter() bool {
	return m.Latitude.Value != nil && m.Longitude.Value != nil
}

// ClearsCenter reports whether both coordinates were sent as explicit nulls.
func (m *MeetingUpdate) ClearsCenter() bool {
	return m.Latitude.IsNull() && m.Longitude.IsNull()
}

type VenueLocation struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

func (v *VenueLocation) Bind(_ *http.Request) error {
	return validate.Struct(v)
}

// OptionalFloat records whether a JSON key was present at all, and its value.
type OptionalFloat struct {
	Set   bool
	Value *float64
}

func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o OptionalFloat) IsNull() bool {
	return o.Set && o.Value == nil
}
