package model

import (
	"time"

	"github.com/akabemail-hash/asutkosks/internal/permission"
)

// Languages accepted for User.Language.
var Languages = []string{"en", "az", "ru", "tr"}

// User mirrors the `users` table joined with the role name.
type User struct {
	ID           uint64    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	RoleID       uint64    `json:"role_id"`
	RoleName     string    `json:"role_name"`
	Language     string    `json:"language"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role mirrors the `roles` table.  Permissions are stored as JSON text;
// PermissionsRaw keeps the stored form so malformed values can be detected.
type Role struct {
	ID             uint64    `json:"id"`
	Name           string    `json:"name"`
	Permissions    []string  `json:"permissions"`
	PermissionsRaw string    `json:"-"`
	TokenVersion   int       `json:"token_version"`
	CreatedAt      time.Time `json:"created_at"`
}

// ParsePermissions decodes PermissionsRaw, failing closed.
func (r Role) ParsePermissions() ([]string, error) {
	return permission.Parse(r.PermissionsRaw)
}

// IsAdmin reports whether the role is the admin sentinel.
func (r Role) IsAdmin() bool { return r.Name == permission.AdminRole }

// Account is a user together with its role, as loaded at login.
type Account struct {
	User
	Role Role
}
