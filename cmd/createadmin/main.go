// Command createadmin ensures the admin role exists and creates the admin
// account, or resets its password when it already exists.  It reads the same
// environment as the server.
//
//	createadmin -username admin -password 's3cret'
//
// The password may also come from ADMIN_PASSWORD.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/akabemail-hash/asutkosks/internal/config"
	"github.com/akabemail-hash/asutkosks/internal/database"
	"github.com/akabemail-hash/asutkosks/internal/logging"
	"github.com/akabemail-hash/asutkosks/internal/model"
	"github.com/akabemail-hash/asutkosks/internal/permission"
	"github.com/akabemail-hash/asutkosks/internal/repository"
	"github.com/akabemail-hash/asutkosks/internal/utils"
)

func main() {
	username := flag.String("username", "admin", "admin username")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password (default $ADMIN_PASSWORD)")
	language := flag.String("language", "en", "interface language: en, az, ru or tr")
	flag.Parse()

	name := strings.TrimSpace(*username)
	if name == "" || *password == "" {
		logging.Fatal().Msg("username and password are required")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: "console"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.Close()
	if err := database.RunMigrations(ctx, db); err != nil {
		logging.Fatal().Err(err).Msg("migrations failed")
	}

	role, err := ensureAdminRole(ctx, repository.NewRoleRepo(db))
	if err != nil {
		logging.Fatal().Err(err).Msg("admin role")
	}

	hash, err := utils.HashPassword(*password, cfg.BcryptCost)
	if err != nil {
		logging.Fatal().Err(err).Msg("hash password")
	}

	users := repository.NewUserRepo(db)
	existing, err := users.GetByUsername(ctx, name)
	switch {
	case err == nil:
		upd := repository.UserUpdate{Username: name, RoleID: role.ID, Language: *language, PasswordHash: &hash}
		if err := users.Update(ctx, existing.ID, upd); err != nil {
			logging.Fatal().Err(err).Msg("update admin")
		}
		logging.Info().Uint64("user_id", existing.ID).Str("username", name).Msg("admin password reset")
	case errors.Is(err, repository.ErrNotFound):
		u := model.User{Username: name, PasswordHash: hash, RoleID: role.ID, Language: *language}
		if err := users.Create(ctx, &u); err != nil {
			logging.Fatal().Err(err).Msg("create admin")
		}
		logging.Info().Uint64("user_id", u.ID).Str("username", name).Msg("admin created")
	default:
		logging.Fatal().Err(err).Msg("lookup admin")
	}
}

func ensureAdminRole(ctx context.Context, roles *repository.RoleRepo) (model.Role, error) {
	role, err := roles.GetByName(ctx, permission.AdminRole)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Role{}, err
	}
	role = model.Role{Name: permission.AdminRole, Permissions: []string{permission.Wildcard}}
	if err := roles.Create(ctx, &role); err != nil {
		return model.Role{}, err
	}
	logging.Info().Uint64("role_id", role.ID).Msg("admin role created")
	return role, nil
}
