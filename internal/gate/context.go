package gate

import (
	"context"

	"github.com/nexus-geo/nexus-gateway/internal/auth"
	"github.com/nexus-geo/nexus-gateway/internal/scope"
)

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey int

const (
	claimsKey ctxKey = iota // stores *auth.Claims
	scopeKey                // stores *scope.Scope
)

// ClaimsFromContext retrieves the verified claims from context.
// Returns nil if the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if v := ctx.Value(claimsKey); v != nil {
		if c, ok := v.(*auth.Claims); ok {
			return c
		}
	}
	return nil
}

// ScopeFromContext retrieves the resolved access scope from context.
// Returns nil if no scope was resolved for the request.
func ScopeFromContext(ctx context.Context) *scope.Scope {
	if v := ctx.Value(scopeKey); v != nil {
		if s, ok := v.(*scope.Scope); ok {
			return s
		}
	}
	return nil
}

// WithClaims adds verified claims to the context.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// WithScope adds a resolved scope to the context.
func WithScope(ctx context.Context, s *scope.Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}
