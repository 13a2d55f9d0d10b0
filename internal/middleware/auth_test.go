package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akabemail-hash/asutkosks/internal/apperr"
	"github.com/akabemail-hash/asutkosks/internal/model"
	"github.com/akabemail-hash/asutkosks/internal/repository"
	"github.com/akabemail-hash/asutkosks/internal/utils"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newCodec(t *testing.T) *utils.TokenCodec {
	t.Helper()
	tc, err := utils.NewTokenCodec(testSecret)
	require.NoError(t, err)
	return tc
}

func issue(t *testing.T, tc *utils.TokenCodec, id utils.Identity) string {
	t.Helper()
	tok, _, err := tc.Issue(id, false)
	require.NoError(t, err)
	return tok
}

func run(mw echo.MiddlewareFunc, c echo.Context) (bool, error) {
	called := false
	err := mw(func(echo.Context) error { called = true; return nil })(c)
	return called, err
}

func newCtx(req *http.Request) echo.Context {
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestAuthenticateCookie(t *testing.T) {
	tc := newCodec(t)
	tok := issue(t, tc, utils.Identity{ID: 7, Username: "ali", Role: "user", Permissions: []string{"/dashboard"}})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tok})
	c := newCtx(req)

	called, err := run(Authenticate(tc), c)
	require.NoError(t, err)
	assert.True(t, called)
	id, ok := IdentityFrom(c)
	require.True(t, ok)
	assert.Equal(t, uint64(7), id.ID)
	assert.Equal(t, "user", id.Role)
}

func TestAuthenticateBearerFallback(t *testing.T) {
	tc := newCodec(t)
	tok := issue(t, tc, utils.Identity{ID: 1, Username: "root", Role: "admin"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "bearer "+tok)
	called, err := run(Authenticate(tc), newCtx(req))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestAuthenticateRejects(t *testing.T) {
	tc := newCodec(t)
	other, err := utils.NewTokenCodec("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	past := tc.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })

	cases := []struct {
		name  string
		token string
		want  *apperr.Error
	}{
		{"missing", "", apperr.ErrTokenMissing},
		{"malformed", "not.a.jwt", apperr.ErrTokenMalformed},
		{"expired", issue(t, past, utils.Identity{ID: 1, Role: "user"}), apperr.ErrTokenExpired},
		{"bad signature", issue(t, other, utils.Identity{ID: 1, Role: "admin"}), apperr.ErrTokenInvalidSignature},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.token})
			}
			called, err := run(Authenticate(tc), newCtx(req))
			assert.False(t, called)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, http.StatusUnauthorized, apperr.From(err).Status())
		})
	}
}

func withIdentity(id utils.Identity) echo.Context {
	c := newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	c.Set(identityKey, id)
	return c
}

func TestRequireRole(t *testing.T) {
	called, err := run(RequireRole("admin"), withIdentity(utils.Identity{ID: 1, Role: "admin"}))
	require.NoError(t, err)
	assert.True(t, called)

	// exact match only; a wildcard permission does not make a role admin
	called, err = run(RequireRole("admin"), withIdentity(utils.Identity{ID: 2, Role: "Admin", Permissions: []string{"*"}}))
	assert.False(t, called)
	assert.ErrorIs(t, err, apperr.ErrWrongRole)
	assert.Equal(t, http.StatusForbidden, apperr.From(err).Status())

	_, err = run(RequireRole("admin"), newCtx(httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.ErrorIs(t, err, apperr.ErrTokenMissing)
}

func TestRequirePermission(t *testing.T) {
	cases := []struct {
		name string
		id   utils.Identity
		ok   bool
	}{
		{"admin bypass", utils.Identity{Role: "admin"}, true},
		{"wildcard", utils.Identity{Role: "lead", Permissions: []string{"*"}}, true},
		{"prefix", utils.Identity{Role: "user", Permissions: []string{"/admin"}}, true},
		{"exact", utils.Identity{Role: "user", Permissions: []string{"/admin/reports"}}, true},
		{"other path", utils.Identity{Role: "user", Permissions: []string{"/dashboard"}}, false},
		{"none", utils.Identity{Role: "user"}, false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			called, err := run(RequirePermission("/admin/reports"), withIdentity(tt.id))
			assert.Equal(t, tt.ok, called)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperr.ErrPathNotPermitted)
			}
		})
	}
}

type fakeAccounts map[uint64]model.Account

func (f fakeAccounts) GetByID(_ context.Context, id uint64) (model.Account, error) {
	a, ok := f[id]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func TestRequireFreshRole(t *testing.T) {
	accts := fakeAccounts{
		1: {User: model.User{ID: 1}, Role: model.Role{Name: "admin", TokenVersion: 3}},
	}
	mw := RequireFreshRole(accts)

	called, err := run(mw, withIdentity(utils.Identity{ID: 1, Role: "admin", TokenVersion: 3}))
	require.NoError(t, err)
	assert.True(t, called)

	for name, id := range map[string]utils.Identity{
		"stale version": {ID: 1, Role: "admin", TokenVersion: 2},
		"renamed role":  {ID: 1, Role: "superuser", TokenVersion: 3},
		"deleted user":  {ID: 9, Role: "admin", TokenVersion: 3},
	} {
		t.Run(name, func(t *testing.T) {
			called, err := run(mw, withIdentity(id))
			assert.False(t, called)
			assert.ErrorIs(t, err, apperr.ErrTokenRevoked)
		})
	}
}
