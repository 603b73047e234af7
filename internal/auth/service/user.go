package service

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/aussiebroadwan/triage/internal/auth/domain"
	"github.com/aussiebroadwan/triage/internal/auth/store"
	"github.com/aussiebroadwan/triage/pkg/errcode"
	"github.com/aussiebroadwan/triage/pkg/slogx"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// UserService is the administrative view of accounts. Permission checks
// happen before these methods are reached.
type UserService struct {
	Store store.Store
}

// RoleInfo describes a role and what it grants.
type RoleInfo struct {
	Name        domain.Role `json:"name"`
	Permissions []string    `json:"permissions"`
}

// List returns one page of users and the total number matching the filter.
func (s *UserService) List(ctx context.Context, f domain.UserFilter) ([]domain.User, int, error) {
	if f.Role != "" && !f.Role.Valid() {
		return nil, 0, invalidRole(f.Role)
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	f.Limit = min(f.Limit, MaxPageSize)
	f.Offset = max(f.Offset, 0)

	users, err := s.Store.Users().ListUsers(ctx, f)
	if err != nil {
		return nil, 0, oops.Wrapf(err, "list users")
	}
	total, err := s.Store.Users().CountUsers(ctx, f.Role)
	if err != nil {
		return nil, 0, oops.Wrapf(err, "count users")
	}
	return users, total, nil
}

// Get fetches a user by id.
func (s *UserService) Get(ctx context.Context, userID int64) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, userError(err, userID)
	}
	return u, nil
}

// ChangeRole assigns a new role. Admins cannot change their own role, which
// keeps at least the acting admin in place.
func (s *UserService) ChangeRole(ctx context.Context, actorID, userID int64, role string) (domain.User, error) {
	r, ok := domain.ParseRole(role)
	if !ok {
		return domain.User{}, invalidRole(domain.Role(role))
	}
	if actorID == userID {
		return domain.User{}, selfChange("cannot change your own role")
	}
	if err := s.Store.Users().UpdateRole(ctx, userID, r); err != nil {
		return domain.User{}, userError(err, userID)
	}

	slogx.FromContext(ctx).Info("user role changed", "user_id", userID, "role", r, "by", actorID)
	return s.Get(ctx, userID)
}

// SetActive enables or disables sign-in for a user.
func (s *UserService) SetActive(ctx context.Context, actorID, userID int64, active bool) (domain.User, error) {
	if actorID == userID && !active {
		return domain.User{}, selfChange("cannot deactivate your own account")
	}
	if err := s.Store.Users().SetActive(ctx, userID, active); err != nil {
		return domain.User{}, userError(err, userID)
	}

	slogx.FromContext(ctx).Info("user activation changed", "user_id", userID, "active", active, "by", actorID)
	return s.Get(ctx, userID)
}

// Delete soft-deletes a user.
func (s *UserService) Delete(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return selfChange("cannot delete your own account")
	}
	if err := s.Store.Users().SoftDeleteUser(ctx, userID); err != nil {
		return userError(err, userID)
	}
	slogx.FromContext(ctx).Info("user deleted", "user_id", userID, "by", actorID)
	return nil
}

// Roles lists every role with its permissions.
func (s *UserService) Roles() []RoleInfo {
	roles := domain.Roles()
	out := make([]RoleInfo, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleInfo{Name: r, Permissions: domain.PermissionsFor(r)})
	}
	return out
}

func userError(err error, userID int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return oops.Code(errcode.UserNotFound).With("user_id", userID).Errorf("user not found")
	}
	return oops.Wrapf(err, "user %d", userID)
}

func invalidRole(r domain.Role) error {
	return oops.
		Code(errcode.ValidationError).
		With(errcode.KeyErrors, []string{"role must be one of admin, operator, analyst, viewer"}).
		Errorf("unknown role %q", r)
}

func selfChange(msg string) error {
	return oops.
		Code(errcode.ValidationError).
		With(errcode.KeyErrors, []string{msg}).
		Errorf("request validation failed")
}
