// Package admin provides the grant and token administration API.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"

	"github.com/nexus-geo/nexus-gateway/internal/scope"
	"github.com/nexus-geo/nexus-gateway/internal/storage"
)

// Storage interface for admin operations.
type Storage interface {
	Ping(ctx context.Context) error

	AddGrant(ctx context.Context, g *scope.Grant) (int64, error)
	GrantsForSubject(ctx context.Context, subjectID string) ([]scope.Grant, error)
	ListGrants(ctx context.Context) ([]scope.Grant, error)
	DeleteGrant(ctx context.Context, id int64) error

	CreateAdminToken(ctx context.Context, name, secret string) (int64, error)
	ListAdminTokens(ctx context.Context) ([]*storage.AdminToken, error)
	DeleteAdminToken(ctx context.Context, id int64) error
	VerifyAdminToken(ctx context.Context, secret string) (*storage.AdminToken, error)
}

// Handler provides admin endpoints.
type Handler struct {
	storage   Storage
	logger    *slog.Logger
	masterKey string
}

// NewHandler creates an admin handler. masterKey may be empty, in which case
// only stored admin tokens authenticate.
func NewHandler(st Storage, masterKey string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{storage: st, logger: logger, masterKey: masterKey}
}

// isMasterKey compares a presented key against the configured master key in
// constant time.
func (h *Handler) isMasterKey(key string) bool {
	if h.masterKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.masterKey)) == 1
}
