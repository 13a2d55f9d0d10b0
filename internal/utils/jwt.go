package utils // package utils provides the session token codec and hashing helpers

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akabemail-hash/asutkosks/internal/apperr"
)

const (
	// SessionTTL is the lifetime of a normal login.
	SessionTTL = time.Hour
	// RememberTTL is the lifetime when "remember me" was requested.
	RememberTTL = 7 * 24 * time.Hour
)

// TTL returns the session lifetime for the remember-me choice.
func TTL(remember bool) time.Duration {
	if remember {
		return RememberTTL
	}
	return SessionTTL
}

// Identity is what a verified token vouches for.  It reflects the role and
// permissions as of issuance; TokenVersion lets sensitive routes detect a
// role that changed since.
type Identity struct {
	ID           uint64   `json:"id"`
	Username     string   `json:"username"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions"`
	TokenVersion int      `json:"-"`
}

// SessionClaims is the signed token payload.
type SessionClaims struct {
	ID           uint64   `json:"id"`
	Username     string   `json:"username"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions"`
	TokenVersion int      `json:"tv"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256 session tokens.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec refuses an empty secret.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	return &TokenCodec{secret: []byte(secret), now: time.Now}, nil
}

// WithClock replaces the time source; used by tests.
func (tc *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	return &TokenCodec{secret: tc.secret, now: now}
}

// Issue signs a token for id that expires after TTL(remember).
func (tc *TokenCodec) Issue(id Identity, remember bool) (string, time.Time, error) {
	now := tc.now().UTC()
	exp := now.Add(TTL(remember))
	perms := id.Permissions
	if perms == nil {
		perms = []string{}
	}
	claims := SessionClaims{
		ID:           id.ID,
		Username:     id.Username,
		Role:         id.Role,
		Permissions:  perms,
		TokenVersion: id.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(id.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks the signature first, then expiry (valid only while now < exp).
// Errors are apperr sentinels: ErrTokenInvalidSignature, ErrTokenExpired or
// ErrTokenMalformed.
func (tc *TokenCodec) Verify(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, apperr.ErrTokenMissing
	}
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return tc.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tc.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Identity{}, apperr.ErrTokenInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, apperr.ErrTokenExpired
	default:
		return Identity{}, apperr.ErrTokenMalformed
	}
	if claims.ID == 0 || claims.Role == "" {
		return Identity{}, apperr.ErrTokenMalformed
	}
	perms := claims.Permissions
	if perms == nil {
		perms = []string{}
	}
	return Identity{
		ID:           claims.ID,
		Username:     claims.Username,
		Role:         claims.Role,
		Permissions:  perms,
		TokenVersion: claims.TokenVersion,
	}, nil
}
