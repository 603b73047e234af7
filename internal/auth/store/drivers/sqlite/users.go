package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/triage/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, username, full_name, password_hash, role, is_active,
	is_verified, reset_token_hash, reset_token_expires_at, verification_token_hash,
	last_login_at, deleted_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u            domain.User
		role         string
		resetHash    sql.NullString
		resetExpires sql.NullInt64
		verifyHash   sql.NullString
		lastLogin    sql.NullTime
		deletedAt    sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.FullName, &u.PasswordHash, &role, &u.IsActive,
		&u.IsVerified, &resetHash, &resetExpires, &verifyHash,
		&lastLogin, &deletedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.Role = domain.Role(role)
	u.ResetTokenHash = mapNullStringPtr(resetHash)
	u.ResetTokenExpiresAt = mapNullUnixPtr(resetExpires)
	u.VerificationTokenHash = mapNullStringPtr(verifyHash)
	u.LastLoginAt = mapNullTimePtr(lastLogin)
	u.DeletedAt = mapNullTimePtr(deletedAt)
	return u, nil
}

func (r *usersRepo) getOne(ctx context.Context, where string, arg any) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where+` AND deleted_at IS NULL`, arg)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	return r.getOne(ctx, `id = ?`, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `email = ?`, email)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, `username = ?`, username)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.NewUser) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, username, full_name, password_hash, role, is_active, is_verified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Email, u.Username, u.FullName, u.PasswordHash, string(u.Role), u.IsActive, u.IsVerified,
	)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return res.LastInsertId()
}

func (r *usersRepo) ListUsers(ctx context.Context, f domain.UserFilter) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE deleted_at IS NULL AND (? = '' OR role = ?)
		ORDER BY id
		LIMIT ? OFFSET ?`,
		string(f.Role), string(f.Role), f.Limit, f.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *usersRepo) CountUsers(ctx context.Context, role domain.Role) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users
		WHERE deleted_at IS NULL AND (? = '' OR role = ?)`,
		string(role), string(role),
	).Scan(&n)
	return n, err
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}

// update runs an UPDATE against a live user, bumping updated_at.
func (r *usersRepo) update(ctx context.Context, id int64, set string, args ...any) error {
	args = append(args, id)
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET `+set+`, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`, args...))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.update(ctx, id, `password_hash = ?`, hash)
}

func (r *usersRepo) UpdateRole(ctx context.Context, id int64, role domain.Role) error {
	return r.update(ctx, id, `role = ?`, string(role))
}

func (r *usersRepo) SetActive(ctx context.Context, id int64, active bool) error {
	return r.update(ctx, id, `is_active = ?`, active)
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, id int64) error {
	return r.update(ctx, id, `last_login_at = CURRENT_TIMESTAMP`)
}

func (r *usersRepo) SetResetToken(ctx context.Context, id int64, hash string, expiresAt time.Time) error {
	return r.update(ctx, id, `reset_token_hash = ?, reset_token_expires_at = ?`, hash, expiresAt.Unix())
}

func (r *usersRepo) ClearResetToken(ctx context.Context, id int64) error {
	return r.update(ctx, id, `reset_token_hash = NULL, reset_token_expires_at = NULL`)
}

func (r *usersRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL
		WHERE reset_token_hash IS NOT NULL AND reset_token_expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *usersRepo) SetVerificationToken(ctx context.Context, id int64, hash string) error {
	return r.update(ctx, id, `verification_token_hash = ?`, hash)
}

func (r *usersRepo) MarkVerified(ctx context.Context, id int64) error {
	return r.update(ctx, id, `is_verified = 1, verification_token_hash = NULL`)
}

func (r *usersRepo) SoftDeleteUser(ctx context.Context, id int64) error {
	return r.update(ctx, id, `deleted_at = CURRENT_TIMESTAMP, is_active = 0,
		reset_token_hash = NULL, reset_token_expires_at = NULL, verification_token_hash = NULL`)
}
