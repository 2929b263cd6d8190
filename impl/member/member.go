package member

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"qrattend/entity"
	"qrattend/lib/apperr"
	"qrattend/lib/sl"
	"time"

	"github.com/google/uuid"
)

type Database interface {
	SaveMember(ctx context.Context, member *entity.Member) error
	GetMemberById(ctx context.Context, id string) (*entity.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (*entity.Member, error)
	GetMembers(ctx context.Context) ([]*entity.Member, error)
	UpdateMemberProfile(ctx context.Context, member *entity.Member) error
	DeleteMember(ctx context.Context, id string) error
	CountMembers(ctx context.Context) (int64, error)
	CountMembersByRole(ctx context.Context) ([]*entity.RoleCount, error)
	CountMemberAttendance(ctx context.Context, memberId string) (int64, error)
	DeleteMemberAttendance(ctx context.Context, memberId string) error
}

type Hasher interface {
	Hash(password string) (string, error)
}

type Members struct {
	db     Database
	hasher Hasher
	log    *slog.Logger
	now    func() time.Time
}

func New(db Database, hasher Hasher, log *slog.Logger) *Members {
	return &Members{
		db:     db,
		hasher: hasher,
		log:    log.With(sl.Module("impl.member")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a self-service account; the role is always member.
func (m *Members) Register(ctx context.Context, req *entity.Registration) (*entity.MemberInfo, error) {
	member, err := m.create(ctx, req.Name, req.Email, req.Password, entity.RoleMember, "User already exists")
	if err != nil {
		return nil, err
	}
	return member.Info(), nil
}

// Create is the admin path and may assign any role.
func (m *Members) Create(ctx context.Context, req *entity.MemberCreate) (*entity.MemberInfo, error) {
	role := req.Role
	if role == "" {
		role = entity.RoleMember
	}
	member, err := m.create(ctx, req.Name, req.Email, req.Password, role, "Email already in use")
	if err != nil {
		return nil, err
	}
	return member.Info(), nil
}

func (m *Members) create(ctx context.Context, name, email, password string, role entity.Role, conflict string) (*entity.Member, error) {
	email = entity.NormalizeEmail(email)
	existing, err := m.db.GetMemberByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict(conflict)
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := m.now()
	member := &entity.Member{
		Id:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Password:  hash,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = m.db.SaveMember(ctx, member); err != nil {
		var dup *entity.DuplicateError
		if errors.As(err, &dup) {
			return nil, apperr.Conflict(conflict)
		}
		return nil, fmt.Errorf("save member: %w", err)
	}
	m.log.With(
		slog.String("member_id", member.Id),
		slog.String("role", string(member.Role)),
	).Info("member created")
	return member, nil
}

func (m *Members) List(ctx context.Context) ([]*entity.Member, error) {
	return m.db.GetMembers(ctx)
}

func (m *Members) find(ctx context.Context, id string) (*entity.Member, error) {
	member, err := m.db.GetMemberById(ctx, id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperr.NotFound("Member not found")
	}
	return member, nil
}

func (m *Members) Get(ctx context.Context, id string) (*entity.MemberDetails, error) {
	member, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := m.db.CountMemberAttendance(ctx, member.Id)
	if err != nil {
		return nil, err
	}
	return &entity.MemberDetails{Member: member.Info(), AttendanceCount: count}, nil
}

func (m *Members) Update(ctx context.Context, id string, req *entity.MemberUpdate) (*entity.MemberInfo, error) {
	member, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		member.Name = req.Name
	}
	if req.Email != "" {
		member.Email = entity.NormalizeEmail(req.Email)
	}
	if req.Role != "" {
		member.Role = req.Role
	}
	if req.Password != "" {
		member.Password, err = m.hasher.Hash(req.Password)
		if err != nil {
			return nil, err
		}
	}
	member.UpdatedAt = m.now()

	if err = m.db.UpdateMemberProfile(ctx, member); err != nil {
		var dup *entity.DuplicateError
		if errors.As(err, &dup) {
			return nil, apperr.Conflict("Email already in use")
		}
		return nil, fmt.Errorf("update member: %w", err)
	}
	m.log.With(slog.String("member_id", member.Id)).Info("member updated")
	return member.Info(), nil
}

// Delete removes a member and its attendance. Nobody can delete themselves.
func (m *Members) Delete(ctx context.Context, id string, actor *entity.Member) error {
	member, err := m.find(ctx, id)
	if err != nil {
		return err
	}
	if actor != nil && actor.Id == member.Id {
		return apperr.Validation("Cannot delete your own account")
	}
	if err = m.db.DeleteMemberAttendance(ctx, member.Id); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	if err = m.db.DeleteMember(ctx, member.Id); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	m.log.With(slog.String("member_id", member.Id)).Info("member deleted")
	return nil
}

func (m *Members) Stats(ctx context.Context) (*entity.MemberStats, error) {
	total, err := m.db.CountMembers(ctx)
	if err != nil {
		return nil, err
	}
	byRole, err := m.db.CountMembersByRole(ctx)
	if err != nil {
		return nil, err
	}
	return &entity.MemberStats{TotalMembers: total, ByRole: byRole}, nil
}
