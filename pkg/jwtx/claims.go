package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/triage/pkg/idx"
)

// Purpose separates token families so a token minted for one flow can never
// authorize another (a refresh token is not an access token, a reset token
// is not a verification token).
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
	PurposeReset   Purpose = "reset"
	PurposeVerify  Purpose = "verify"
)

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeRefresh, PurposeReset, PurposeVerify:
		return true
	}
	return false
}

// Claims is the payload of every token we issue.
//
//	{"sub":"42","exp":1700000000,"iat":...,"jti":"01H...","iss":"triage-auth","type":"access"}
//
// Reset and verification tokens additionally carry "nbf".
type Claims struct {
	jwt.RegisteredClaims

	// Type is the purpose tag. Tokens without one never verify.
	Type Purpose `json:"type"`
}

// newClaims builds claims for subject valid for ttl from now. withNBF adds a
// not-before equal to the issue time.
func newClaims(subject string, purpose Purpose, issuer string, ttl time.Duration, now time.Time, withNBF bool) Claims {
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        idx.NewAt(now).String(),
		},
		Type: purpose,
	}
	if withNBF {
		c.NotBefore = jwt.NewNumericDate(now)
	}
	return c
}

// Expiry returns the expiry time, or the zero time if none is set.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
