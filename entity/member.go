package entity

import (
	"net/http"
	"qrattend/lib/validate"
	"strings"
	"time"
)

// Role controls what a member may do through the API.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePR     Role = "pr"     // may read attendance and place the venue location
	RoleMember Role = "member" // default for self-registered accounts
)

// Member is a registered person. ActiveToken and ActiveIP form the session
// slot: at most one credential is valid at a time, and a new login overwrites it.
type Member struct {
	Id          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Email       string    `json:"email" bson:"email"`
	Password    string    `json:"-" bson:"password"`
	Role        Role      `json:"role" bson:"role"`
	ActiveToken string    `json:"-" bson:"active_token"`
	ActiveIP    string    `json:"active_ip,omitempty" bson:"active_ip"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

func (m *Member) HasSession() bool {
	return m.ActiveToken != ""
}

func (m *Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}

func (m *Member) Info() *MemberInfo {
	return &MemberInfo{
		Id:    m.Id,
		Name:  m.Name,
		Email: m.Email,
		Role:  m.Role,
	}
}

// MemberInfo is the public part of a member, safe to embed in other responses.
type MemberInfo struct {
	Id    string `json:"id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
	Role  Role   `json:"role,omitempty" bson:"role"`
}

type MemberDetails struct {
	Member          *MemberInfo `json:"member"`
	AttendanceCount int64       `json:"attendance_count"`
}

type RoleCount struct {
	Role  Role  `json:"role" bson:"_id"`
	Count int64 `json:"count" bson:"count"`
}

type MemberStats struct {
	TotalMembers int64        `json:"total_members"`
	ByRole       []*RoleCount `json:"by_role"`
}

// NormalizeEmail is applied before every store and lookup, emails are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Bind(_ *http.Request) error {
	return validate.Struct(c)
}

type Registration struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *Registration) Bind(_ *http.Request) error {
	return validate.Struct(r)
}

// MemberCreate is used by admins; unlike Registration it may carry a role.
type MemberCreate struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"omitempty,oneof=admin pr member"`
}

func (m *MemberCreate) Bind(_ *http.Request) error {
	return validate.Struct(m)
}

// MemberUpdate holds optional fields; empty values leave the stored ones untouched.
type MemberUpdate struct {
	Name     string `json:"name" validate:"omitempty"`
	Email    string `json:"email" validate:"omitempty,email"`
	Role     Role   `json:"role" validate:"omitempty,oneof=admin pr member"`
	Password string `json:"password" validate:"omitempty"`
}

func (m *MemberUpdate) Bind(_ *http.Request) error {
	return validate.Struct(m)
}

type LoginResult struct {
	Token  string      `json:"token"`
	Member *MemberInfo `json:"user"`
}
