package repository

import (
	"context"
	"database/sql"

	"github.com/akabemail-hash/asutkosks/internal/logging"
	"github.com/akabemail-hash/asutkosks/internal/model"
	"github.com/akabemail-hash/asutkosks/internal/permission"
)

// RoleRepo encapsulates the `roles` table.  Permissions are stored as a JSON
// array in a TEXT column.
type RoleRepo struct {
	db *sql.DB
}

func NewRoleRepo(db *sql.DB) *RoleRepo {
	return &RoleRepo{db: db}
}

const roleSelect = "SELECT id, name, permissions, token_version, created_at FROM roles"

func scanRole(row rowScanner) (model.Role, error) {
	var ro model.Role
	if err := row.Scan(&ro.ID, &ro.Name, &ro.PermissionsRaw, &ro.TokenVersion, &ro.CreatedAt); err != nil {
		return model.Role{}, translate(err)
	}
	perms, err := ro.ParsePermissions()
	if err != nil {
		logging.Warn().Uint64("role_id", ro.ID).Str("role", ro.Name).Msg("role has malformed permissions; treating as none")
	}
	ro.Permissions = perms
	return ro, nil
}

func (r *RoleRepo) List(ctx context.Context) ([]model.Role, error) {
	rows, err := r.db.QueryContext(ctx, roleSelect+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Role{}
	for rows.Next() {
		ro, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ro)
	}
	return out, rows.Err()
}

func (r *RoleRepo) GetByID(ctx context.Context, id uint64) (model.Role, error) {
	return scanRole(r.db.QueryRowContext(ctx, roleSelect+" WHERE id = ?", id))
}

// GetByName looks a role up by its unique name.
func (r *RoleRepo) GetByName(ctx context.Context, name string) (model.Role, error) {
	return scanRole(r.db.QueryRowContext(ctx, roleSelect+" WHERE name = ?", name))
}

// Create inserts ro and fills in its ID and token version.
func (r *RoleRepo) Create(ctx context.Context, ro *model.Role) error {
	raw := permission.Encode(ro.Permissions)
	res, err := r.db.ExecContext(ctx, "INSERT INTO roles (name, permissions) VALUES (?, ?)", ro.Name, raw)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*ro = created
	return nil
}

// Update renames ro and replaces its permissions.  token_version is bumped
// when either changes, which revokes sessions on routes that check it.
// token_version is assigned first because MySQL evaluates SET left to right.
func (r *RoleRepo) Update(ctx context.Context, ro model.Role) error {
	raw := permission.Encode(ro.Permissions)
	const q = `UPDATE roles
	              SET token_version = token_version + IF(name <> ? OR permissions <> ?, 1, 0),
	                  name = ?, permissions = ?
	            WHERE id = ?`
	return affected(r.db.ExecContext(ctx, q, ro.Name, raw, ro.Name, raw, ro.ID))
}

// Delete removes a role that no user references.
func (r *RoleRepo) Delete(ctx context.Context, id uint64) error {
	return affected(r.db.ExecContext(ctx, "DELETE FROM roles WHERE id = ?", id))
}
