// Package auth handles credential verification and role resolution.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Errors for credential verification failures.
var (
	// ErrMissingCredential indicates no credential was provided.
	ErrMissingCredential = errors.New("auth: missing credential")
	// ErrCredentialInvalid indicates the credential failed signature or expiry checks.
	ErrCredentialInvalid = errors.New("auth: invalid credential")
	// ErrMalformedCredential indicates a verified credential with structurally invalid claims.
	ErrMalformedCredential = errors.New("auth: malformed credential")
)

// Role is the closed set of caller roles. Raw role strings are normalized
// exactly once, at parse time; everything downstream compares Role values.
type Role int

const (
	// RoleUnknown is the zero value for unrecognized role strings.
	RoleUnknown Role = iota
	// RoleAdmin has unrestricted access to all municipalities and states.
	RoleAdmin
	// RoleManager has unrestricted access but no token administration rights.
	RoleManager
	// RoleViewer is restricted to the municipalities and states granted to it.
	RoleViewer
)

// ParseRole normalizes a raw role string into a Role.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "manager":
		return RoleManager
	case "viewer":
		return RoleViewer
	}
	return RoleUnknown
}

// String returns the canonical lowercase name of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleManager:
		return "manager"
	case RoleViewer:
		return "viewer"
	}
	return "unknown"
}

// Unrestricted reports whether the role bypasses grant-based scoping.
func (r Role) Unrestricted() bool {
	return r == RoleAdmin || r == RoleManager
}

// Claims is a verified credential's payload.
type Claims struct {
	Subject   string
	Role      Role
	Platforms []string
	ExpiresAt time.Time
}

// tokenClaims is the wire shape of the JWT payload.
type tokenClaims struct {
	Role      string   `json:"role"`
	Platforms []string `json:"platforms,omitempty"`
	jwt.RegisteredClaims
}

// Verifier verifies HS256-signed credentials against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier with the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a raw token string.
// Signature and expiry failures return ErrCredentialInvalid. A token that
// verifies but carries no subject or an unknown role returns
// ErrMalformedCredential.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingCredential
	}

	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}

	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformedCredential)
	}
	role := ParseRole(tc.Role)
	if role == RoleUnknown {
		return nil, fmt.Errorf("%w: unknown role %q", ErrMalformedCredential, tc.Role)
	}

	claims := &Claims{
		Subject:   tc.Subject,
		Role:      role,
		Platforms: tc.Platforms,
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}

// Sign issues a credential for the given subject and role. Used by tests
// and by the mock identity tooling; production tokens come from the
// identity provider with the same secret.
func (v *Verifier) Sign(subject string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	tc := tokenClaims{
		Role: role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(v.secret)
}
