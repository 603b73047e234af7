package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// User management operations. The server checks the session user's
// permissions; the SDK does not.

// ListUsersOptions pages and filters ListUsers.
type ListUsersOptions struct {
	Role   string
	Offset int
	Limit  int
}

// ListUsers requires users:read.
func (s *Session) ListUsers(ctx context.Context, opts ListUsersOptions) (*ListUsersResponse, error) {
	q := url.Values{}
	if opts.Role != "" {
		q.Set("role", opts.Role)
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/v1/users"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var list ListUsersResponse
	if err := decodeJSON(resp, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetUser fetches a user. Users may always fetch themselves; anyone else
// needs users:read.
func (s *Session) GetUser(ctx context.Context, id int64) (*UserResponse, error) {
	return s.userCall(ctx, http.MethodGet, userPath(id), nil)
}

// UpdateUserRole requires users:manage.
func (s *Session) UpdateUserRole(ctx context.Context, id int64, role string) (*UserResponse, error) {
	return s.userCall(ctx, http.MethodPatch, userPath(id)+"/role", UpdateRoleRequest{Role: role})
}

// SetUserActive requires users:manage.
func (s *Session) SetUserActive(ctx context.Context, id int64, active bool) (*UserResponse, error) {
	return s.userCall(ctx, http.MethodPatch, userPath(id)+"/active", UpdateActiveRequest{IsActive: &active})
}

// DeleteUser requires users:delete.
func (s *Session) DeleteUser(ctx context.Context, id int64) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, userPath(id), nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// ListRoles returns every role and its permissions.
func (s *Session) ListRoles(ctx context.Context) (*ListRolesResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/roles", nil)
	if err != nil {
		return nil, err
	}

	var roles ListRolesResponse
	if err := decodeJSON(resp, &roles, http.StatusOK); err != nil {
		return nil, err
	}
	return &roles, nil
}

func (s *Session) userCall(ctx context.Context, method, path string, payload any) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

func userPath(id int64) string {
	return "/v1/users/" + strconv.FormatInt(id, 10)
}
