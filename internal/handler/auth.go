package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/akabemail-hash/asutkosks/internal/apperr"
	"github.com/akabemail-hash/asutkosks/internal/logging"
	"github.com/akabemail-hash/asutkosks/internal/middleware"
	"github.com/akabemail-hash/asutkosks/internal/model"
	"github.com/akabemail-hash/asutkosks/internal/repository"
	"github.com/akabemail-hash/asutkosks/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Users        UserStore
	Tokens       TokenIssuer
	CookieSecure bool
}

func NewAuthHandler(users UserStore, tokens TokenIssuer, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Users: users, Tokens: tokens, CookieSecure: cookieSecure}
}

type loginReq struct {
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type sessionUser struct {
	ID          uint64   `json:"id"`
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Language    string   `json:"language"`
	Permissions []string `json:"permissions"`
}

var errBadCredentials = apperr.Unauthenticated("Invalid credentials")

func permissionsOf(a model.Account) []string {
	perms, err := a.Role.ParsePermissions()
	if err != nil {
		logging.Warn().Uint64("role_id", a.Role.ID).Msg("malformed role permissions; granting none")
	}
	return perms
}

func toSessionUser(a model.Account) sessionUser {
	return sessionUser{
		ID:          a.ID,
		Username:    a.Username,
		Role:        a.Role.Name,
		Language:    a.Language,
		Permissions: permissionsOf(a),
	}
}

func (h *AuthHandler) cookie(value string, maxAge int, expires time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   maxAge,
		Expires:  expires,
	}
	// browsers drop SameSite=None cookies that are not Secure
	if !h.CookieSecure {
		ck.SameSite = http.SameSiteLaxMode
	}
	return ck
}

// Login checks credentials and issues a session token as a cookie and in
// the body.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	acct, err := h.Users.GetByUsername(ctx, req.Username)
	if errors.Is(err, repository.ErrNotFound) {
		utils.BurnPasswordCheck(req.Password)
		logging.Ctx(ctx).Debug().Str("username", req.Username).Msg("login: unknown user")
		return errBadCredentials
	}
	if err != nil {
		return storeErr(err, "User not found", "")
	}
	if !utils.VerifyPassword(acct.PasswordHash, req.Password) {
		logging.Ctx(ctx).Debug().Uint64("user_id", acct.ID).Msg("login: wrong password")
		return errBadCredentials
	}

	user := toSessionUser(acct)
	token, exp, err := h.Tokens.Issue(utils.Identity{
		ID:           acct.ID,
		Username:     acct.Username,
		Role:         acct.Role.Name,
		Permissions:  user.Permissions,
		TokenVersion: acct.Role.TokenVersion,
	}, req.RememberMe)
	if err != nil {
		return apperr.Upstream("Internal Server Error", err)
	}
	c.SetCookie(h.cookie(token, int(utils.TTL(req.RememberMe)/time.Second), exp))
	logging.Ctx(ctx).Info().Uint64("user_id", acct.ID).Bool("remember", req.RememberMe).Msg("login")

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// Logout clears the session cookie.  Tokens are stateless, so a copy held
// elsewhere stays valid until it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.cookie("", -1, time.Unix(0, 0)))
	return message(c, "Logged out")
}

// Me returns the caller as currently stored.
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	acct, err := h.Users.GetByID(c.Request().Context(), id.ID)
	if err != nil {
		return storeErr(err, "User not found", "")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toSessionUser(acct)})
}
