package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/triage/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and so that a Tx cannot start another transaction.
type Store interface {
	Users() Users
	RevokedTokens() RevokedTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Users never return soft-deleted rows.
type Users interface {
	GetUserByID(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a user and returns its id. A duplicate email or
	// username yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.NewUser) (int64, error)

	// ListUsers pages through users ordered by id.
	ListUsers(ctx context.Context, f domain.UserFilter) ([]domain.User, error)

	// CountUsers counts users holding role, or all users when role is empty.
	CountUsers(ctx context.Context, role domain.Role) (int, error)

	// IsEmpty returns true if there are no users at all.
	IsEmpty(ctx context.Context) (bool, error)

	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	UpdateRole(ctx context.Context, id int64, role domain.Role) error
	SetActive(ctx context.Context, id int64, active bool) error
	TouchLastLogin(ctx context.Context, id int64) error

	// SetResetToken stores the fingerprint of a pending reset token,
	// replacing any earlier one.
	SetResetToken(ctx context.Context, id int64, hash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id int64) error

	// ClearExpiredResetTokens drops reset tokens that expired before now.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)

	SetVerificationToken(ctx context.Context, id int64, hash string) error

	// MarkVerified sets is_verified and clears the verification token.
	MarkVerified(ctx context.Context, id int64) error

	// SoftDeleteUser hides the user and deactivates it.
	SoftDeleteUser(ctx context.Context, id int64) error
}

// RevokedTokens is the deny-list of token ids cut short by logout.
type RevokedTokens interface {
	// Revoke records jti until expiresAt and reports whether this call
	// recorded it. Revoking twice is not an error; the second call reports
	// false.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpired drops entries whose token has expired anyway.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
