// Package gate resolves bearer tokens to user ids and enforces the static
// role-permission map.
//
// Authentication is a linear sequence of checks, each with its own failure
// code:
//
//	no token                        AUTHENTICATION_REQUIRED
//	bad signature, expired, revoked INVALID_TOKEN
//	token of the wrong family       INVALID_TOKEN, or INVALID_REFRESH_TOKEN on refresh
//	subject not an integer id       INVALID_USER_ID
//
// Authorization then loads the user and checks its role, failing with
// INSUFFICIENT_PERMISSIONS, or ACCESS_DENIED for records owned by someone
// else.
package gate

import (
	"context"
	"errors"
	"strconv"

	"github.com/samber/oops"

	"github.com/aussiebroadwan/triage/internal/auth/domain"
	"github.com/aussiebroadwan/triage/internal/auth/store"
	"github.com/aussiebroadwan/triage/pkg/errcode"
	"github.com/aussiebroadwan/triage/pkg/httpx"
	"github.com/aussiebroadwan/triage/pkg/jwtx"
)

// TokenParser is the part of jwtx.Service the gate needs.
type TokenParser interface {
	Parse(ctx context.Context, token string, want jwtx.Purpose) (jwtx.Claims, error)
}

// UserLookup is the part of the user store the gate needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (domain.User, error)
}

type Gate struct {
	tokens TokenParser
	users  UserLookup
}

func New(tokens TokenParser, users UserLookup) *Gate {
	return &Gate{tokens: tokens, users: users}
}

var (
	_ httpx.Authenticator     = (*Gate)(nil)
	_ httpx.PermissionChecker = (*Gate)(nil)
)

// Authenticate resolves an Authorization header carrying an access token.
func (g *Gate) Authenticate(ctx context.Context, header string) (int64, error) {
	raw := httpx.BearerToken(header)
	if raw == "" {
		return 0, oops.
			Code(errcode.AuthenticationRequired).
			Errorf("authentication required")
	}
	id, _, err := g.resolve(ctx, raw, jwtx.PurposeAccess, errcode.InvalidToken)
	return id, err
}

// AuthenticateRefresh resolves a refresh token presented in a request body.
// It also returns the claims so the caller can rotate or revoke the token.
func (g *Gate) AuthenticateRefresh(ctx context.Context, raw string) (int64, jwtx.Claims, error) {
	if raw == "" {
		return 0, jwtx.Claims{}, oops.
			Code(errcode.AuthenticationRequired).
			Errorf("refresh token required")
	}
	return g.resolve(ctx, raw, jwtx.PurposeRefresh, errcode.InvalidRefreshToken)
}

func (g *Gate) resolve(ctx context.Context, raw string, want jwtx.Purpose, wrongPurpose string) (int64, jwtx.Claims, error) {
	claims, err := g.tokens.Parse(ctx, raw, want)
	switch {
	case errors.Is(err, jwtx.ErrWrongPurpose):
		return 0, jwtx.Claims{}, oops.
			Code(wrongPurpose).
			With("want", string(want)).
			Errorf("token is not a%s %s token", article(want), want)
	case err != nil:
		return 0, jwtx.Claims{}, oops.
			Code(errcode.InvalidToken).
			Wrapf(err, "invalid or expired token")
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, jwtx.Claims{}, oops.
			Code(errcode.InvalidUserID).
			Errorf("token subject is not a user id")
	}
	return id, claims, nil
}

func article(p jwtx.Purpose) string {
	if p == jwtx.PurposeAccess {
		return "n"
	}
	return ""
}

// ActiveUser loads the caller and checks it may still act.
func (g *Gate) ActiveUser(ctx context.Context, userID int64) (domain.User, error) {
	u, err := g.users.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.User{}, oops.
			Code(errcode.InvalidToken).
			With("user_id", userID).
			Errorf("token subject no longer exists")
	case err != nil:
		return domain.User{}, oops.Wrapf(err, "load user")
	case !u.IsActive:
		return domain.User{}, oops.
			Code(errcode.AccountInactive).
			With("user_id", userID).
			Errorf("account is inactive")
	}
	return u, nil
}

// RequirePermission checks the caller's role grants permission.
func (g *Gate) RequirePermission(ctx context.Context, userID int64, permission string) error {
	u, err := g.ActiveUser(ctx, userID)
	if err != nil {
		return err
	}
	if !domain.HasPermission(u.Role, permission) {
		return oops.
			Code(errcode.InsufficientPermissions).
			With("permission", permission).
			Errorf("role %q lacks permission %q", u.Role, permission)
	}
	return nil
}

// RequireSelfOr lets the caller act on their own record, or on any record
// when their role grants permission.
func (g *Gate) RequireSelfOr(ctx context.Context, userID, targetID int64, permission string) error {
	u, err := g.ActiveUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.ID == targetID || domain.HasPermission(u.Role, permission) {
		return nil
	}
	return oops.
		Code(errcode.AccessDenied).
		With("target_id", targetID).
		Errorf("access denied")
}
