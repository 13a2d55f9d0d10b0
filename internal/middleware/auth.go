// Package middleware holds the echo middleware chain: authentication, role
// and permission gates, rate limiting and request logging.
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/akabemail-hash/asutkosks/internal/apperr"
	"github.com/akabemail-hash/asutkosks/internal/metrics"
	"github.com/akabemail-hash/asutkosks/internal/model"
	"github.com/akabemail-hash/asutkosks/internal/permission"
	"github.com/akabemail-hash/asutkosks/internal/repository"
	"github.com/akabemail-hash/asutkosks/internal/utils"
)

// TokenCookie is the cookie the session token travels in.
const TokenCookie = "token"

const identityKey = "identity"

// TokenVerifier validates a raw session token.
type TokenVerifier interface {
	Verify(raw string) (utils.Identity, error)
}

// AccountLookup loads the current state of a user and its role.
type AccountLookup interface {
	GetByID(ctx context.Context, id uint64) (model.Account, error)
}

// tokenFrom reads the cookie first and falls back to an Authorization
// Bearer header.
func tokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(TokenCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func reject(err error) error {
	e := apperr.From(err)
	if e.Reason != apperr.ReasonNone {
		metrics.AuthFailures.WithLabelValues(string(e.Reason)).Inc()
	}
	return e
}

// Authenticate verifies the session token and stores the caller's identity
// on the context.
func Authenticate(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFrom(c)
			if raw == "" {
				return reject(apperr.ErrTokenMissing)
			}
			id, err := v.Verify(raw)
			if err != nil {
				return reject(err)
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c echo.Context) (utils.Identity, bool) {
	id, ok := c.Get(identityKey).(utils.Identity)
	return id, ok
}

// RequireRole admits callers whose role name equals one of roles exactly.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return reject(apperr.ErrTokenMissing)
			}
			if !allowed[id.Role] {
				return reject(apperr.ErrWrongRole)
			}
			return next(c)
		}
	}
}

// RequirePermission admits callers whose token grants path.
func RequirePermission(path string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return reject(apperr.ErrTokenMissing)
			}
			if !permission.Allow(id.Role, id.Permissions, path) {
				return reject(apperr.ErrPathNotPermitted)
			}
			return next(c)
		}
	}
}

// RequireFreshRole rejects tokens issued before the caller's role was
// renamed, re-permissioned or reassigned.
func RequireFreshRole(accounts AccountLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return reject(apperr.ErrTokenMissing)
			}
			acct, err := accounts.GetByID(c.Request().Context(), id.ID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return reject(apperr.ErrTokenRevoked)
				}
				return apperr.Upstream("Internal Server Error", err)
			}
			if acct.Role.Name != id.Role || acct.Role.TokenVersion != id.TokenVersion {
				return reject(apperr.ErrTokenRevoked)
			}
			return next(c)
		}
	}
}
