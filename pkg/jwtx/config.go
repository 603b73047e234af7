package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes per token family.
const (
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultResetTokenTTL   = 1 * time.Hour
	DefaultVerifyTokenTTL  = 24 * time.Hour
)

// MinSecretLength is the shortest HMAC secret we accept.
const MinSecretLength = 32

// Config holds everything the Service needs. It is copied into the Service
// on construction and never mutated afterwards. Lifetimes are taken as given:
// a zero TTL yields tokens that are already expired when issued.
type Config struct {
	Secret    []byte
	Algorithm string // HS256, HS384 or HS512; empty means HS256
	Issuer    string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	VerifyTTL  time.Duration
}

// DefaultConfig returns a Config using the default algorithm and lifetimes.
func DefaultConfig(secret []byte, issuer string) Config {
	return Config{
		Secret:     secret,
		Algorithm:  jwt.SigningMethodHS256.Alg(),
		Issuer:     issuer,
		AccessTTL:  DefaultAccessTokenTTL,
		RefreshTTL: DefaultRefreshTokenTTL,
		ResetTTL:   DefaultResetTokenTTL,
		VerifyTTL:  DefaultVerifyTokenTTL,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.Secret) < MinSecretLength {
		return fmt.Errorf("jwtx: secret must be at least %d bytes", MinSecretLength)
	}
	if _, err := signingMethod(c.Algorithm); err != nil {
		return err
	}
	if c.AccessTTL < 0 || c.RefreshTTL < 0 || c.ResetTTL < 0 || c.VerifyTTL < 0 {
		return errors.New("jwtx: token lifetimes must not be negative")
	}
	return nil
}

func signingMethod(alg string) (*jwt.SigningMethodHMAC, error) {
	switch alg {
	case jwt.SigningMethodHS256.Alg():
		return jwt.SigningMethodHS256, nil
	case jwt.SigningMethodHS384.Alg():
		return jwt.SigningMethodHS384, nil
	case jwt.SigningMethodHS512.Alg():
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (use HS256, HS384 or HS512)", alg)
	}
}
