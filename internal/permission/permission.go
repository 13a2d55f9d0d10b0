// Package permission decides whether a non-admin role may reach a logical
// resource path.  Permissions are literal path prefixes; "*" grants all.
package permission

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	// AdminRole bypasses the permission list entirely.
	AdminRole = "admin"
	// Wildcard grants every path.
	Wildcard = "*"
)

// Allow reports whether a caller with role and perms may access path.
// Matching is a case-sensitive prefix test.
func Allow(role string, perms []string, path string) bool {
	if role == AdminRole {
		return true
	}
	for _, p := range perms {
		if p == Wildcard {
			return true
		}
	}
	for _, p := range perms {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

var ErrMalformed = errors.New("permissions must be a JSON array of strings")

// Parse decodes a stored permission list.  Empty input is an empty list.
// Anything other than an array of strings is an error and yields no
// permissions, so callers fail closed.
func Parse(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return []string{}, nil
	}
	var perms []string
	if err := json.Unmarshal([]byte(raw), &perms); err != nil {
		return []string{}, ErrMalformed
	}
	if perms == nil {
		perms = []string{}
	}
	return perms, nil
}

// Encode is the inverse of Parse.
func Encode(perms []string) string {
	if perms == nil {
		perms = []string{}
	}
	b, _ := json.Marshal(perms)
	return string(b)
}
