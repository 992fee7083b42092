package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/agrolink/agrolink/internal/api/domain"
	"github.com/agrolink/agrolink/internal/api/store"
)

type usersRepo struct {
	db *sql.DB
}

const userColumns = `id, first_name, last_name, email, phone, location,
	password_hash, role, is_verified, verification_token,
	reset_token_hash, reset_token_expires_at, last_login_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                 domain.User
		role              string
		verificationToken sql.NullString
		resetTokenHash    sql.NullString
		resetExpiresAt    sql.NullTime
		lastLoginAt       sql.NullTime
	)

	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.Location,
		&u.PasswordHash, &role, &u.IsVerified, &verificationToken,
		&resetTokenHash, &resetExpiresAt, &lastLoginAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.Role = domain.Role(role)
	u.VerificationToken = verificationToken.String
	u.ResetTokenHash = resetTokenHash.String
	if resetExpiresAt.Valid {
		t := resetExpiresAt.Time
		u.ResetTokenExpiresAt = &t
	}
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		u.LastLoginAt = &t
	}

	return u, nil
}

// nullString maps "" to NULL so unset tokens never match a lookup.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.Phone, u.Location,
		u.PasswordHash, string(u.Role), u.IsVerified, nullString(u.VerificationToken),
		nullString(u.ResetTokenHash), nullTime(u.ResetTokenExpiresAt), nullTime(u.LastLoginAt),
		u.CreatedAt, u.UpdatedAt,
	)
	return mapConflict(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	return u, mapNotFound(err)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	u, err := scanUser(row)
	return u, mapNotFound(err)
}

func (r *usersRepo) GetUserByVerificationToken(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, store.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE verification_token = ?`, token)
	u, err := scanUser(row)
	return u, mapNotFound(err)
}

func (r *usersRepo) GetUserByResetTokenHash(ctx context.Context, hash string, now time.Time) (domain.User, error) {
	if hash == "" {
		return domain.User{}, store.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE reset_token_hash = ? AND reset_token_expires_at > ?`,
		hash, now)
	u, err := scanUser(row)
	return u, mapNotFound(err)
}

func (r *usersRepo) MarkVerified(ctx context.Context, id string) error {
	return r.exec(ctx, `
		UPDATE users
		SET is_verified = 1, verification_token = NULL, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), id)
}

func (r *usersRepo) SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET reset_token_hash = ?, reset_token_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		hash, expiresAt, time.Now().UTC(), id)
}

func (r *usersRepo) UpdatePasswordAndClearReset(ctx context.Context, id, newHash string) error {
	return r.exec(ctx, `
		UPDATE users
		SET password_hash = ?, reset_token_hash = NULL,
		    reset_token_expires_at = NULL, updated_at = ?
		WHERE id = ?`,
		newHash, time.Now().UTC(), id)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id, newHash string) error {
	return r.exec(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), id)
}

func (r *usersRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		at, time.Now().UTC(), id)
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id, firstName, lastName, phone, location string) error {
	return r.exec(ctx, `
		UPDATE users
		SET first_name = ?, last_name = ?, phone = ?, location = ?, updated_at = ?
		WHERE id = ?`,
		firstName, lastName, phone, location, time.Now().UTC(), id)
}

func (r *usersRepo) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return r.exec(ctx, `
		UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), time.Now().UTC(), id)
}

// DeleteUserGuarded refuses to delete the sole remaining admin. The guard is
// part of the DELETE itself, so two concurrent deletes cannot both pass a
// separate count check and empty the admin set.
func (r *usersRepo) DeleteUserGuarded(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM users
		WHERE id = ?
		  AND NOT (
		    role = 'admin'
		    AND (SELECT COUNT(*) FROM users WHERE role = 'admin') <= 1
		  )`, id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Nothing deleted: classify whether the row is missing or guarded.
	var role string
	err = r.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = ?`, id).Scan(&role)
	if err != nil {
		return mapNotFound(err)
	}
	if role == string(domain.RoleAdmin) {
		return store.ErrLastAdmin
	}
	return store.ErrNotFound
}

func (r *usersRepo) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&n)
	return n, err
}

func (r *usersRepo) ListUsers(ctx context.Context, f store.UserFilter) ([]domain.User, int, error) {
	where, args := listFilterClause(f)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 10
	}
	offset := (page - 1) * limit

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users`+where+
			` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func listFilterClause(f store.UserFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if f.Role != "" && f.Role != "all" {
		conds = append(conds, "role = ?")
		args = append(args, f.Role)
	}
	switch f.Status {
	case "verified":
		conds = append(conds, "is_verified = 1")
	case "unverified":
		conds = append(conds, "is_verified = 0")
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		conds = append(conds,
			`(first_name LIKE ? ESCAPE '\' OR last_name LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike neutralises LIKE wildcards in user-supplied search terms.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: user", store.ErrNotFound)
	}
	return nil
}
