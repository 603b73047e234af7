package jwtx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
	ErrWrongPurpose = errors.New("jwtx: token purpose mismatch")
	ErrRevoked      = errors.New("jwtx: token revoked")
)

// RevocationList answers whether a token id has been revoked before its
// natural expiry.
type RevocationList interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Token is an issued, signed token.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// Service issues and verifies HMAC-signed tokens for all four purposes.
type Service struct {
	cfg     Config
	method  *jwt.SigningMethodHMAC
	now     func() time.Time
	revoked RevocationList
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRevocationList makes verification reject revoked token ids.
func WithRevocationList(r RevocationList) Option {
	return func(s *Service) { s.revoked = r }
}

// NewService validates cfg and returns a ready Service.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = jwt.SigningMethodHS256.Alg()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method, _ := signingMethod(cfg.Algorithm)

	// Own the secret so later writes to the caller's slice cannot change it.
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	s := &Service{cfg: cfg, method: method, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL is the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// IssueAccess mints a short-lived access token for a user id.
func (s *Service) IssueAccess(subject string) (Token, error) {
	return s.issue(subject, PurposeAccess, s.cfg.AccessTTL, false)
}

// IssueRefresh mints a long-lived refresh token for a user id.
func (s *Service) IssueRefresh(subject string) (Token, error) {
	return s.issue(subject, PurposeRefresh, s.cfg.RefreshTTL, false)
}

// IssueReset mints a password-reset token for an email address.
func (s *Service) IssueReset(email string) (Token, error) {
	return s.issue(email, PurposeReset, s.cfg.ResetTTL, true)
}

// IssueVerify mints an email-verification token for an email address.
func (s *Service) IssueVerify(email string) (Token, error) {
	return s.issue(email, PurposeVerify, s.cfg.VerifyTTL, true)
}

func (s *Service) issue(subject string, purpose Purpose, ttl time.Duration, withNBF bool) (Token, error) {
	if subject == "" {
		return Token{}, fmt.Errorf("%w: empty subject", ErrInvalidClaim)
	}
	claims := newClaims(subject, purpose, s.cfg.Issuer, ttl, s.now(), withNBF)

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return Token{}, fmt.Errorf("jwtx: sign token: %w", err)
	}
	return Token{Value: signed, ID: claims.ID, ExpiresAt: claims.Expiry()}, nil
}

// Parse verifies signature, expiry, not-before, issuer, purpose and
// revocation, in that order, and returns the claims. Errors wrap one of the
// package sentinels.
func (s *Service) Parse(ctx context.Context, tokenString string, want Purpose) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	claims := Claims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.cfg.Secret, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}
	if !token.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalidClaim
	}
	if claims.Type != want {
		return Claims{}, fmt.Errorf("%w: want %q, got %q", ErrWrongPurpose, want, claims.Type)
	}

	if s.revoked != nil && claims.ID != "" {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Claims{}, fmt.Errorf("%w: revocation lookup: %v", ErrRevoked, err)
		}
		if revoked {
			return Claims{}, ErrRevoked
		}
	}

	return claims, nil
}

// Verify is the fail-closed form of Parse: it returns the subject and true
// for a valid token of the wanted purpose, and "" and false for anything
// else.
func (s *Service) Verify(ctx context.Context, tokenString string, want Purpose) (string, bool) {
	claims, err := s.Parse(ctx, tokenString, want)
	if err != nil {
		return "", false
	}
	return claims.Subject, true
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
}
