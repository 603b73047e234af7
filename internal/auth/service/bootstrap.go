package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/triage/internal/auth/domain"
	"github.com/aussiebroadwan/triage/internal/auth/store"
	"github.com/aussiebroadwan/triage/pkg/cryptox"
	"github.com/aussiebroadwan/triage/pkg/pwpolicy"
	"github.com/aussiebroadwan/triage/pkg/slogx"
)

var (
	ErrBootstrapIncomplete          = errors.New("bootstrap admin needs both email and password")
	ErrBootstrapWeakPassword        = errors.New("bootstrap admin password does not meet policy")
	ErrBootstrapFailedToCreateAdmin = errors.New("failed to create admin user")
)

// BootstrapService seeds the first administrator into an empty database.
type BootstrapService struct {
	Store  store.Store
	Hasher *cryptox.Pool
	Policy *pwpolicy.Policy

	Email    string
	Username string
	Password string
}

// Enabled reports whether bootstrap credentials were supplied.
func (s *BootstrapService) Enabled() bool {
	return s.Email != "" || s.Password != ""
}

// Run creates the admin account when no users exist yet. It reports whether
// a user was created.
func (s *BootstrapService) Run(ctx context.Context) (bool, error) {
	l := slogx.FromContext(ctx)

	if !s.Enabled() {
		return false, nil
	}
	if s.Email == "" || s.Password == "" {
		return false, ErrBootstrapIncomplete
	}
	if len(s.Password) > cryptox.MaxPasswordBytes || !s.Policy.Validate(s.Password).IsValid {
		return false, ErrBootstrapWeakPassword
	}

	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	if !empty {
		l.Debug("bootstrap skipped, users already exist")
		return false, nil
	}

	hash, err := s.Hasher.Hash(ctx, s.Password)
	if err != nil {
		l.Error("failed to hash admin password", slog.Any("error", err))
		return false, ErrBootstrapFailedToCreateAdmin
	}

	email := normalizeEmail(s.Email)
	username := s.Username
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}

	id, err := s.Store.Users().CreateUser(ctx, domain.NewUser{
		Email:        email,
		Username:     username,
		FullName:     "Administrator",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsActive:     true,
		IsVerified:   true,
	})
	if err != nil {
		l.Error("failed to create admin user", slog.Any("error", err))
		return false, ErrBootstrapFailedToCreateAdmin
	}

	l.Info("bootstrapped admin user", slog.Int64("user_id", id), slog.String("email", email))
	return true, nil
}
