package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"qrattend/entity"
	"qrattend/lib/apperr"
	"slices"
)

type Database interface {
	GetMemberById(ctx context.Context, id string) (*entity.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (*entity.Member, error)
	SaveMemberSession(ctx context.Context, id, token, ip string) error
	ClearMemberSession(ctx context.Context, id string) error
}

// Auth implements single-active-session login: each member has one session
// slot, and storing a new token there invalidates the previous one.
type Auth struct {
	db        Database
	tokens    *Tokens
	passwords Passwords
}

func New(db Database, tokens *Tokens, passwords Passwords) *Auth {
	return &Auth{
		db:        db,
		tokens:    tokens,
		passwords: passwords,
	}
}

func (a *Auth) Login(ctx context.Context, email, password, origin string) (*entity.LoginResult, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	member, err := a.db.GetMemberByEmail(ctx, entity.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if member == nil || !a.passwords.Verify(member.Password, password) {
		return nil, apperr.ErrBadCredentials
	}

	token, err := a.tokens.Issue(member)
	if err != nil {
		return nil, err
	}
	if err = a.db.SaveMemberSession(ctx, member.Id, token, origin); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return &entity.LoginResult{
		Token:  token,
		Member: member.Info(),
	}, nil
}

func (a *Auth) Logout(ctx context.Context, memberId string) error {
	if a.db == nil {
		return fmt.Errorf("database not connected")
	}
	return a.db.ClearMemberSession(ctx, memberId)
}

// Authenticate resolves a bearer token to its member. A token that verifies
// but differs from the one in the member's session slot is reported as
// apperr.ErrSessionReplaced. A member without a stored session is accepted
// as long as the token itself is valid.
func (a *Auth) Authenticate(ctx context.Context, token string) (*entity.Member, error) {
	if token == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	member, err := a.db.GetMemberById(ctx, claims.MemberId)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperr.ErrIdentityNotFound
	}
	if member.HasSession() && subtle.ConstantTimeCompare([]byte(member.ActiveToken), []byte(token)) != 1 {
		return nil, apperr.ErrSessionReplaced
	}
	return member, nil
}

// Authorize fails with a FORBIDDEN error when the member's role is not listed.
func Authorize(member *entity.Member, roles ...entity.Role) error {
	if member == nil {
		return apperr.ErrUnauthenticated
	}
	if !slices.Contains(roles, member.Role) {
		return apperr.Forbidden(fmt.Sprintf("Role (%s) not allowed", member.Role))
	}
	return nil
}
