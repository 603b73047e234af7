package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/aussiebroadwan/triage/internal/auth/domain"
	"github.com/aussiebroadwan/triage/internal/auth/gate"
	"github.com/aussiebroadwan/triage/internal/auth/store"
	"github.com/aussiebroadwan/triage/pkg/cryptox"
	"github.com/aussiebroadwan/triage/pkg/errcode"
	"github.com/aussiebroadwan/triage/pkg/jwtx"
	"github.com/aussiebroadwan/triage/pkg/pwpolicy"
	"github.com/aussiebroadwan/triage/pkg/slogx"
)

// Revoker records token ids that must stop verifying before they expire.
type Revoker interface {
	// Revoke reports false when jti was already revoked.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
}

// AuthService implements the account lifecycle: registration, login,
// refresh, logout, password changes and resets, and email verification.
type AuthService struct {
	Store    store.Store
	Tokens   *jwtx.Service
	Gate     *gate.Gate
	Hasher   *cryptox.Pool
	Policy   *pwpolicy.Policy
	Revoker  Revoker
	Notifier Notifier
	Now      func() time.Time

	decoyMu sync.Mutex
	decoy   string
}

type RegisterInput struct {
	Email    string
	Username string
	FullName string
	Password string
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) notifier() Notifier {
	if s.Notifier != nil {
		return s.Notifier
	}
	return LogNotifier{}
}

// checkPassword runs the policy and turns failures into WEAK_PASSWORD.
// Passwords the hasher cannot accept are rejected here as well.
func (s *AuthService) checkPassword(password string) error {
	if len(password) > cryptox.MaxPasswordBytes {
		return oops.
			Code(errcode.WeakPassword).
			With(errcode.KeyErrors, []string{fmt.Sprintf("password must be at most %d bytes", cryptox.MaxPasswordBytes)}).
			Errorf("password too long")
	}
	res := s.Policy.Validate(password)
	if res.IsValid {
		return nil
	}
	return oops.
		Code(errcode.WeakPassword).
		With(errcode.KeyErrors, res.Errors).
		Errorf("password does not meet requirements")
}

// Register creates a viewer account and sends a verification token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	l := slogx.FromContext(ctx)
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	if err := s.checkPassword(in.Password); err != nil {
		return domain.User{}, err
	}

	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, oops.Code(errcode.EmailAlreadyRegistered).Errorf("email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, oops.Wrapf(err, "lookup email")
	}
	if _, err := s.Store.Users().GetUserByUsername(ctx, username); err == nil {
		return domain.User{}, oops.Code(errcode.UsernameTaken).Errorf("username already taken")
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, oops.Wrapf(err, "lookup username")
	}

	hash, err := s.Hasher.Hash(ctx, in.Password)
	if err != nil {
		return domain.User{}, oops.Wrapf(err, "hash password")
	}

	verify, err := s.Tokens.IssueVerify(email)
	if err != nil {
		return domain.User{}, oops.Wrapf(err, "issue verification token")
	}

	var user domain.User
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		id, err := tx.Users().CreateUser(ctx, domain.NewUser{
			Email:        email,
			Username:     username,
			FullName:     strings.TrimSpace(in.FullName),
			PasswordHash: hash,
			Role:         domain.DefaultRole,
			IsActive:     true,
		})
		if errors.Is(err, store.ErrAlreadyExists) {
			return oops.Code(errcode.EmailAlreadyRegistered).Errorf("email or username already registered")
		}
		if err != nil {
			return err
		}
		if err := tx.Users().SetVerificationToken(ctx, id, cryptox.FingerprintToken(verify.Value)); err != nil {
			return err
		}
		user, err = tx.Users().GetUserByID(ctx, id)
		return err
	})
	if err != nil {
		return domain.User{}, oops.Wrapf(err, "create user")
	}

	if err := s.notifier().SendVerification(ctx, email, verify.Value); err != nil {
		l.Error("failed to send verification message", "user_id", user.ID, "error", err)
	}

	l.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login checks credentials and issues an access and refresh token. Unknown
// accounts cost the same hash verification as a wrong password.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (domain.TokenPair, domain.User, error) {
	l := slogx.FromContext(ctx)
	invalid := oops.Code(errcode.InvalidCredentials).Errorf("invalid credentials")

	user, err := s.lookupLogin(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		_, _ = s.Hasher.Verify(ctx, password, s.decoyHash(ctx))
		l.Info("login failed", "reason", "unknown_account")
		return domain.TokenPair{}, domain.User{}, invalid
	}
	if err != nil {
		return domain.TokenPair{}, domain.User{}, oops.Wrapf(err, "lookup user")
	}

	ok, err := s.Hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return domain.TokenPair{}, domain.User{}, oops.Wrapf(err, "verify password")
	}
	if !ok {
		l.Info("login failed", "reason", "bad_password", "user_id", user.ID)
		return domain.TokenPair{}, domain.User{}, invalid
	}
	if !user.IsActive {
		return domain.TokenPair{}, domain.User{}, oops.
			Code(errcode.AccountInactive).
			Errorf("account is inactive")
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return domain.TokenPair{}, domain.User{}, err
	}
	if err := s.Store.Users().TouchLastLogin(ctx, user.ID); err != nil {
		l.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}

	l.Info("login succeeded", "user_id", user.ID)
	return pair, user, nil
}

func (s *AuthService) lookupLogin(ctx context.Context, identifier string) (domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return s.Store.Users().GetUserByEmail(ctx, normalizeEmail(identifier))
	}
	return s.Store.Users().GetUserByUsername(ctx, identifier)
}

// decoyHash is a hash of a random secret, verified against when the account
// does not exist. It is computed on first use, detached from the caller's
// cancellation, and only a successful result is kept.
func (s *AuthService) decoyHash(ctx context.Context) string {
	s.decoyMu.Lock()
	defer s.decoyMu.Unlock()
	if s.decoy != "" {
		return s.decoy
	}

	secret, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to generate decoy secret", "error", err)
		return ""
	}
	hash, err := s.Hasher.Hash(context.WithoutCancel(ctx), secret)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to hash decoy secret", "error", err)
		return ""
	}
	s.decoy = hash
	return hash
}

func (s *AuthService) issuePair(userID int64) (domain.TokenPair, error) {
	sub := strconv.FormatInt(userID, 10)
	access, err := s.Tokens.IssueAccess(sub)
	if err != nil {
		return domain.TokenPair{}, oops.Wrapf(err, "issue access token")
	}
	refresh, err := s.Tokens.IssueRefresh(sub)
	if err != nil {
		return domain.TokenPair{}, oops.Wrapf(err, "issue refresh token")
	}
	return domain.TokenPair{
		AccessToken:  access.Value,
		RefreshToken: refresh.Value,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.Tokens.AccessTTL().Seconds()),
	}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is revoked, so each one works once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	userID, claims, err := s.Gate.AuthenticateRefresh(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if _, err := s.Gate.ActiveUser(ctx, userID); err != nil {
		return domain.TokenPair{}, err
	}

	if s.Revoker != nil {
		fresh, err := s.Revoker.Revoke(ctx, claims.ID, claims.Expiry())
		if err != nil {
			return domain.TokenPair{}, oops.Wrapf(err, "revoke refresh token")
		}
		if !fresh {
			return domain.TokenPair{}, oops.
				Code(errcode.InvalidToken).
				With("user_id", userID).
				Errorf("refresh token already used")
		}
	}
	return s.issuePair(userID)
}

// Logout revokes the access token the request was made with and, when
// given, the caller's refresh token.
func (s *AuthService) Logout(ctx context.Context, userID int64, accessToken, refreshToken string) error {
	if s.Revoker == nil {
		return nil
	}

	access, err := s.Tokens.Parse(ctx, accessToken, jwtx.PurposeAccess)
	if err != nil {
		return oops.Code(errcode.InvalidToken).Wrapf(err, "invalid access token")
	}
	if _, err := s.Revoker.Revoke(ctx, access.ID, access.Expiry()); err != nil {
		return oops.Wrapf(err, "revoke access token")
	}

	if refreshToken == "" {
		return nil
	}
	refresh, err := s.Tokens.Parse(ctx, refreshToken, jwtx.PurposeRefresh)
	if err != nil || refresh.Subject != access.Subject {
		// Already unusable or not the caller's; nothing to revoke.
		return nil
	}
	if _, err := s.Revoker.Revoke(ctx, refresh.ID, refresh.Expiry()); err != nil {
		return oops.Wrapf(err, "revoke refresh token")
	}
	slogx.FromContext(ctx).Info("logged out", "user_id", userID)
	return nil
}

// Me returns the caller's own record.
func (s *AuthService) Me(ctx context.Context, userID int64) (domain.User, error) {
	return s.Gate.ActiveUser(ctx, userID)
}

// ChangePassword replaces the caller's password after checking the current
// one.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.Gate.ActiveUser(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.Hasher.Verify(ctx, current, user.PasswordHash)
	if err != nil {
		return oops.Wrapf(err, "verify password")
	}
	if !ok {
		return oops.Code(errcode.InvalidCredentials).Errorf("current password is incorrect")
	}
	if current == next {
		return oops.
			Code(errcode.ValidationError).
			With(errcode.KeyErrors, []string{"new password must differ from the current password"}).
			Errorf("request validation failed")
	}
	if err := s.checkPassword(next); err != nil {
		return err
	}

	hash, err := s.Hasher.Hash(ctx, next)
	if err != nil {
		return oops.Wrapf(err, "hash password")
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return oops.Wrapf(err, "update password")
	}

	slogx.FromContext(ctx).Info("password changed", "user_id", userID)
	return nil
}

// RequestPasswordReset sends a reset token when the email belongs to an
// active account. It returns nil whether or not it does, so callers cannot
// tell which emails are registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)
	email = normalizeEmail(email)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.Error("password reset lookup failed", "error", err)
		}
		return nil
	}
	if !user.IsActive {
		return nil
	}

	tok, err := s.Tokens.IssueReset(email)
	if err != nil {
		l.Error("failed to issue reset token", "user_id", user.ID, "error", err)
		return nil
	}
	if err := s.Store.Users().SetResetToken(ctx, user.ID, cryptox.FingerprintToken(tok.Value), tok.ExpiresAt); err != nil {
		l.Error("failed to store reset token", "user_id", user.ID, "error", err)
		return nil
	}
	if err := s.notifier().SendPasswordReset(ctx, email, tok.Value); err != nil {
		l.Error("failed to send reset message", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password. The token
// must be the most recently issued one for the account and works once.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	invalid := oops.Code(errcode.InvalidResetToken).Errorf("invalid or expired reset token")

	claims, err := s.Tokens.Parse(ctx, token, jwtx.PurposeReset)
	if err != nil {
		return invalid
	}
	if err := s.checkPassword(newPassword); err != nil {
		return err
	}
	hash, err := s.Hasher.Hash(ctx, newPassword)
	if err != nil {
		return oops.Wrapf(err, "hash password")
	}

	fingerprint := cryptox.FingerprintToken(token)
	now := s.now()

	var userID int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByEmail(ctx, claims.Subject)
		if errors.Is(err, store.ErrNotFound) {
			return invalid
		}
		if err != nil {
			return err
		}
		if !matchesPending(user.ResetTokenHash, fingerprint) ||
			user.ResetTokenExpiresAt == nil || !now.Before(*user.ResetTokenExpiresAt) {
			return invalid
		}

		if err := tx.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return err
		}
		userID = user.ID
		return tx.Users().ClearResetToken(ctx, user.ID)
	})
	if err != nil {
		if errcode.Is(err, errcode.InvalidResetToken) {
			return err
		}
		return oops.Wrapf(err, "reset password")
	}

	slogx.FromContext(ctx).Info("password reset", slog.Int64("user_id", userID))
	return nil
}

// VerifyEmail consumes a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	invalid := oops.Code(errcode.InvalidVerificationToken).Errorf("invalid or expired verification token")

	claims, err := s.Tokens.Parse(ctx, token, jwtx.PurposeVerify)
	if err != nil {
		return invalid
	}

	fingerprint := cryptox.FingerprintToken(token)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByEmail(ctx, claims.Subject)
		if errors.Is(err, store.ErrNotFound) {
			return invalid
		}
		if err != nil {
			return err
		}
		if !matchesPending(user.VerificationTokenHash, fingerprint) {
			return invalid
		}
		return tx.Users().MarkVerified(ctx, user.ID)
	})
	if err != nil {
		if errcode.Is(err, errcode.InvalidVerificationToken) {
			return err
		}
		return oops.Wrapf(err, "verify email")
	}
	return nil
}

// ValidatePassword reports how a candidate password fares against the
// policy without storing anything.
func (s *AuthService) ValidatePassword(password string) pwpolicy.Result {
	return s.Policy.Validate(password)
}

func matchesPending(stored *string, fingerprint string) bool {
	return stored != nil && subtle.ConstantTimeCompare([]byte(*stored), []byte(fingerprint)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
