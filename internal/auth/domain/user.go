package domain

import "time"

// User is the credential record. Reset and verification tokens are never
// stored in clear, only their fingerprints.
type User struct {
	ID           int64
	Email        string
	Username     string
	FullName     string
	PasswordHash string // bcrypt or argon2id encoded
	Role         Role
	IsActive     bool
	IsVerified   bool

	ResetTokenHash        *string
	ResetTokenExpiresAt   *time.Time
	VerificationTokenHash *string

	LastLoginAt *time.Time
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewUser is what registration hands to the store.
type NewUser struct {
	Email        string
	Username     string
	FullName     string
	PasswordHash string
	Role         Role
	IsActive     bool
	IsVerified   bool
}

// UserFilter narrows a user listing.
type UserFilter struct {
	Role   Role // empty means any
	Offset int
	Limit  int
}
