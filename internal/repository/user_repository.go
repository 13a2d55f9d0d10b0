package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/akabemail-hash/asutkosks/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// UserUpdate carries the editable user fields.  A nil PasswordHash keeps the
// current password.
type UserUpdate struct {
	Username     string
	RoleID       uint64
	Language     string
	PasswordHash *string
}

const accountSelect = `SELECT u.id, u.username, u.password_hash, u.role_id, u.language, u.created_at,
       r.id, r.name, r.permissions, r.token_version, r.created_at
  FROM users u
  JOIN roles r ON r.id = u.role_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.RoleID, &a.Language, &a.CreatedAt,
		&a.Role.ID, &a.Role.Name, &a.Role.PermissionsRaw, &a.Role.TokenVersion, &a.Role.CreatedAt)
	if err != nil {
		return model.Account{}, translate(err)
	}
	a.RoleName = a.Role.Name
	return a, nil
}

// GetByUsername loads a user and its role for login.  The match is exact,
// case included, like supervisor matching on kiosks.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		accountSelect+" WHERE u.username = ? COLLATE utf8mb4_bin LIMIT 1", strings.TrimSpace(username))
	return scanAccount(row)
}

// GetByID loads a user and its role.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx, accountSelect+" WHERE u.id = ? LIMIT 1", id))
}

// List returns every user with its role name, oldest first.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	const q = `SELECT u.id, u.username, u.role_id, r.name, u.language, u.created_at
	             FROM users u JOIN roles r ON r.id = u.role_id
	            ORDER BY u.id`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.RoleID, &u.RoleName, &u.Language, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Create inserts u and sets u.ID.  PasswordHash must already be hashed.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role_id, language) VALUES (?,?,?,?)",
		u.Username, u.PasswordHash, u.RoleID, u.Language)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// Update applies upd to user id.
func (r *UserRepo) Update(ctx context.Context, id uint64, upd UserUpdate) error {
	if upd.PasswordHash != nil {
		return affected(r.DB.ExecContext(ctx,
			"UPDATE users SET username = ?, role_id = ?, language = ?, password_hash = ? WHERE id = ?",
			upd.Username, upd.RoleID, upd.Language, *upd.PasswordHash, id))
	}
	return affected(r.DB.ExecContext(ctx,
		"UPDATE users SET username = ?, role_id = ?, language = ? WHERE id = ?",
		upd.Username, upd.RoleID, upd.Language, id))
}

// Delete removes user id.  Users with recorded visits cannot be deleted.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	return affected(r.DB.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id))
}
