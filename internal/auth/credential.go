// Package auth holds the user credential and the session guard.
//
// Exactly one credential is live at a time, or none (anonymous). The Store
// is the only component allowed to read or write it; every consumer gets a
// snapshot copy, never a live reference. The Guard centralizes all
// role-based access decisions so views never re-implement role logic.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role classifies an authenticated user's access level.
type Role string

// Roles recognized by the remote service. The wire value for Restricted is
// "ruser"; ParseRole maps it.
const (
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
	RoleRestricted Role = "restricted"
)

// ErrUnknownRole indicates a role string the client does not recognize.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole converts a wire role value to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "user":
		return RoleUser, nil
	case "ruser", "restricted":
		return RoleRestricted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Credential is the authenticated identity for the current session.
// The role is authoritative for all access decisions; an empty token means
// anonymous regardless of the other fields.
type Credential struct {
	Token       string `json:"token"`
	Role        Role   `json:"role"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Valid reports whether the credential carries a token. A credential without
// a token is treated as anonymous everywhere.
func (c Credential) Valid() bool {
	return c.Token != ""
}

// TokenExpiry peeks at the JWT exp claim without verifying the signature —
// verification is the server's job; the client only uses this to warn before
// an obviously expired credential triggers an Unauthorized round trip.
// Returns the zero time when the token is not a JWT or has no expiry.
func (c Credential) TokenExpiry() time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(c.Token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Expired reports whether the token carries an exp claim in the past.
// Tokens without a readable expiry are never reported expired.
func (c Credential) Expired(now time.Time) bool {
	exp := c.TokenExpiry()
	return !exp.IsZero() && exp.Before(now)
}

// MarshalRedacted renders the credential for display with the token masked.
func (c Credential) MarshalRedacted() ([]byte, error) {
	type redacted struct {
		Role        Role   `json:"role"`
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
		Token       string `json:"token"`
	}
	masked := ""
	if c.Token != "" {
		masked = "********"
	}
	data, err := json.MarshalIndent(redacted{
		Role:        c.Role,
		UserID:      c.UserID,
		DisplayName: c.DisplayName,
		Token:       masked,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal credential: %w", err)
	}
	return data, nil
}
