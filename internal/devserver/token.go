package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/raglet/raglet/internal/auth"
)

var (
	errTokenExpired = errors.New("token expired")
	errTokenInvalid = errors.New("invalid token")
)

// tokenIssuer mints and verifies HS256 access tokens carrying the
// user's role.
type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// claims carried by issued tokens. Role uses the wire spelling
// ("ruser" for the restricted role).
type claims struct {
	Role   string `json:"role"`
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func newTokenIssuer(secret []byte, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{secret: secret, ttl: ttl}
}

// mint signs a token for the given account, expiring after the
// configured lifetime.
func (t *tokenIssuer) mint(username, userID string, role auth.Role, now time.Time) (string, error) {
	wireRole := string(role)
	if role == auth.RoleRestricted {
		wireRole = "ruser"
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role:   wireRole,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})
	signed, err := tok.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// verify parses and validates a token, returning its claims.
func (t *tokenIssuer) verify(raw string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", errTokenInvalid, err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" {
		return nil, errTokenInvalid
	}
	return c, nil
}
