// Package storage provides SQLite persistence for grants, admin tokens, and
// cached dataset entries.
package storage

import (
	"context"

	"github.com/nexus-geo/nexus-gateway/internal/scope"
)

// Storage defines the persistence operations used by the gateway.
type Storage interface {
	// Grant operations
	AddGrant(ctx context.Context, g *scope.Grant) (int64, error)
	GrantsForSubject(ctx context.Context, subjectID string) ([]scope.Grant, error)
	ListGrants(ctx context.Context) ([]scope.Grant, error)
	DeleteGrant(ctx context.Context, id int64) error

	// Admin token operations
	CreateAdminToken(ctx context.Context, name, secret string) (int64, error)
	ListAdminTokens(ctx context.Context) ([]*AdminToken, error)
	DeleteAdminToken(ctx context.Context, id int64) error
	VerifyAdminToken(ctx context.Context, secret string) (*AdminToken, error)

	// Cache entry operations (durable tier key-value store)
	GetCacheValue(ctx context.Context, key string) (string, bool, error)
	SetCacheValue(ctx context.Context, key, value string) error
	DeleteCacheValue(ctx context.Context, key string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
