package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm names accepted by HasherConfig.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// DefaultBcryptCost is tuned for roughly a quarter second per hash on
// current server hardware.
const DefaultBcryptCost = 12

// Argon2id parameters, encoded into every hash so they can change later.
const (
	argon2Memory      = 19 * 1024 // KiB
	argon2Iterations  = 2
	argon2Parallelism = 1
	argon2KeyLength   = 32
	argon2SaltLength  = 16
)

// MaxPasswordBytes is the longest input bcrypt accepts. Argon2id has no
// such limit but both schemes share it so switching algorithms never
// locks anyone out.
const MaxPasswordBytes = 72

var (
	ErrMismatch      = errors.New("cryptox: password does not match")
	ErrInvalidHash   = errors.New("cryptox: invalid hash format")
	ErrUnknownScheme = errors.New("cryptox: unknown hash scheme")
)

// Hasher is a one-way, salted, cost-based password hash. Hash output embeds
// the salt and cost parameters so Verify needs nothing else.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

// HasherConfig selects and tunes a Hasher.
type HasherConfig struct {
	Algorithm  string
	BcryptCost int
}

// NewHasher builds the Hasher named by cfg. Whatever the configured
// algorithm, the returned Hasher verifies both bcrypt and argon2id hashes so
// switching algorithms does not lock out existing accounts.
func NewHasher(cfg HasherConfig) (Hasher, error) {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("cryptox: bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, cost)
	}

	switch strings.ToLower(cfg.Algorithm) {
	case "", AlgorithmBcrypt:
		return &multiHasher{primary: BcryptHasher{Cost: cost}, cost: cost}, nil
	case AlgorithmArgon2id:
		return &multiHasher{primary: Argon2Hasher{}, cost: cost}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, cfg.Algorithm)
	}
}

type multiHasher struct {
	primary Hasher
	cost    int
}

func (m *multiHasher) Hash(password string) (string, error) { return m.primary.Hash(password) }

func (m *multiHasher) Verify(password, encoded string) bool {
	if strings.HasPrefix(encoded, "$argon2id$") {
		return Argon2Hasher{}.Verify(password, encoded)
	}
	return BcryptHasher{Cost: m.cost}.Verify(password, encoded)
}

// BcryptHasher hashes with bcrypt at the given cost.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("cryptox: bcrypt: %w", err)
	}
	return string(out), nil
}

func (h BcryptHasher) Verify(password, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}

// Argon2Hasher produces PHC-format argon2id hashes.
type Argon2Hasher struct{}

func (Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, argon2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, argon2Iterations, argon2Memory, argon2Parallelism, argon2KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Iterations,
		argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func (Argon2Hasher) Verify(password, encoded string) bool {
	return compareArgon2(password, encoded) == nil
}

// compareArgon2 checks password against $argon2id$v=19$m=X,t=Y,p=Z$salt$hash.
func compareArgon2(password, encoded string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return fmt.Errorf("%w: expected 6 parts", ErrInvalidHash)
	}
	if parts[1] != AlgorithmArgon2id {
		return fmt.Errorf("%w: not argon2id", ErrInvalidHash)
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return fmt.Errorf("%w: wrong version", ErrInvalidHash)
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("%w: parameters: %v", ErrInvalidHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return fmt.Errorf("%w: hash", ErrInvalidHash)
	}

	computed := argon2.IDKey([]byte(password), salt, iters, mem, par,
		uint32(len(expected))) // #nosec G115 - length comes from our own encoder

	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}
	return ErrMismatch
}
