package member

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"qrattend/entity"
	"qrattend/internal/database"
	"qrattend/lib/apperr"
	"strings"
	"testing"
)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

type failingHasher struct{}

func (failingHasher) Hash(string) (string, error) {
	return "", errors.New("hash failed")
}

func newMembers(db Database) *Members {
	return New(db, plainHasher{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func kindOf(err error) apperr.Kind {
	if e := apperr.As(err); e != nil {
		return e.Kind
	}
	return apperr.KindInternal
}

func TestRegister(t *testing.T) {
	db := database.NewMemory()
	m := newMembers(db)
	ctx := context.Background()

	info, err := m.Register(ctx, &entity.Registration{Name: "Bob", Email: " Bob@Example.COM ", Password: "secret"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if info.Role != entity.RoleMember || info.Email != "bob@example.com" {
		t.Fatalf("unexpected member: %+v", info)
	}
	stored, _ := db.GetMemberById(ctx, info.Id)
	if stored == nil || stored.Password != "hashed:secret" {
		t.Fatalf("password must be stored hashed: %+v", stored)
	}

	_, err = m.Register(ctx, &entity.Registration{Name: "Bob2", Email: "BOB@example.com", Password: "x"})
	if kindOf(err) != apperr.KindConflict || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateWithRole(t *testing.T) {
	m := newMembers(database.NewMemory())
	ctx := context.Background()

	info, err := m.Create(ctx, &entity.MemberCreate{Name: "Pat", Email: "pat@example.com", Password: "x", Role: entity.RolePR})
	if err != nil || info.Role != entity.RolePR {
		t.Fatalf("expected pr member, got %+v, %v", info, err)
	}
	info, err = m.Create(ctx, &entity.MemberCreate{Name: "Sam", Email: "sam@example.com", Password: "x"})
	if err != nil || info.Role != entity.RoleMember {
		t.Fatalf("expected default role, got %+v, %v", info, err)
	}
	if _, err = m.Create(ctx, &entity.MemberCreate{Name: "Pat", Email: "pat@example.com", Password: "x"}); kindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateHashFailure(t *testing.T) {
	db := database.NewMemory()
	m := New(db, failingHasher{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := m.Register(context.Background(), &entity.Registration{Name: "a", Email: "a@b.c", Password: "x"}); err == nil {
		t.Fatalf("expected error")
	}
	if n, _ := db.CountMembers(context.Background()); n != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestUpdate(t *testing.T) {
	db := database.NewMemory()
	m := newMembers(db)
	ctx := context.Background()

	a, _ := m.Create(ctx, &entity.MemberCreate{Name: "A", Email: "a@example.com", Password: "x"})
	_, _ = m.Create(ctx, &entity.MemberCreate{Name: "B", Email: "b@example.com", Password: "x"})

	info, err := m.Update(ctx, a.Id, &entity.MemberUpdate{Name: "Alice", Role: entity.RoleAdmin, Password: "new"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if info.Name != "Alice" || info.Role != entity.RoleAdmin || info.Email != "a@example.com" {
		t.Fatalf("unexpected update result: %+v", info)
	}
	stored, _ := db.GetMemberById(ctx, a.Id)
	if stored.Password != "hashed:new" {
		t.Fatalf("password not rehashed")
	}

	if _, err = m.Update(ctx, a.Id, &entity.MemberUpdate{Email: "B@example.com"}); kindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict for taken email, got %v", err)
	}
	if _, err = m.Update(ctx, "missing", &entity.MemberUpdate{}); kindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	db := database.NewMemory()
	m := newMembers(db)
	ctx := context.Background()

	adminInfo, _ := m.Create(ctx, &entity.MemberCreate{Name: "Root", Email: "root@example.com", Password: "x", Role: entity.RoleAdmin})
	victim, _ := m.Create(ctx, &entity.MemberCreate{Name: "V", Email: "v@example.com", Password: "x"})
	actor, _ := db.GetMemberById(ctx, adminInfo.Id)

	_ = db.SaveAttendance(ctx, &entity.Attendance{Id: "a1", MemberId: victim.Id, MeetingId: "m1", DeviceIP: "1.1.1.1"})
	_ = db.SaveAttendance(ctx, &entity.Attendance{Id: "a2", MemberId: actor.Id, MeetingId: "m1", DeviceIP: "2.2.2.2"})

	if err := m.Delete(ctx, actor.Id, actor); kindOf(err) != apperr.KindValidation {
		t.Fatalf("self deletion must be rejected, got %v", err)
	}

	details, err := m.Get(ctx, victim.Id)
	if err != nil || details.AttendanceCount != 1 {
		t.Fatalf("expected one attendance before delete, got %+v, %v", details, err)
	}
	if err = m.Delete(ctx, victim.Id, actor); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err = m.Get(ctx, victim.Id); kindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if n, _ := db.CountAllAttendance(ctx); n != 1 {
		t.Fatalf("expected the actor's record to remain, got %d", n)
	}
}

func TestListAndStats(t *testing.T) {
	m := newMembers(database.NewMemory())
	ctx := context.Background()

	_, _ = m.Create(ctx, &entity.MemberCreate{Name: "A", Email: "a@example.com", Password: "x", Role: entity.RoleAdmin})
	_, _ = m.Create(ctx, &entity.MemberCreate{Name: "B", Email: "b@example.com", Password: "x"})
	_, _ = m.Register(ctx, &entity.Registration{Name: "C", Email: "c@example.com", Password: "x"})

	list, err := m.List(ctx)
	if err != nil || len(list) != 3 {
		t.Fatalf("expected 3 members, got %d, %v", len(list), err)
	}

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalMembers != 3 {
		t.Fatalf("unexpected total %d", stats.TotalMembers)
	}
	byRole := make(map[entity.Role]int64)
	for _, rc := range stats.ByRole {
		byRole[rc.Role] = rc.Count
	}
	if byRole[entity.RoleAdmin] != 1 || byRole[entity.RoleMember] != 2 {
		t.Fatalf("unexpected role counts: %v", byRole)
	}
}
