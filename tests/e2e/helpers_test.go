package e2e

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/nexus-geo/nexus-gateway/internal/admin"
	"github.com/nexus-geo/nexus-gateway/internal/auth"
	"github.com/nexus-geo/nexus-gateway/internal/gate"
	"github.com/nexus-geo/nexus-gateway/internal/geocache"
	"github.com/nexus-geo/nexus-gateway/internal/origin"
	"github.com/nexus-geo/nexus-gateway/internal/proxy"
	"github.com/nexus-geo/nexus-gateway/internal/scope"
	"github.com/nexus-geo/nexus-gateway/internal/storage"
	"github.com/nexus-geo/nexus-gateway/internal/testutil/mockorigin"
)

const (
	jwtSecret = "e2e-jwt-secret"
	masterKey = "e2e-master-key"
)

// env is a fully wired gateway backed by a mock origin and a temp SQLite
// database, the same assembly the real process performs at startup.
type env struct {
	gatewayURL string
	origin     *mockorigin.Server
	verifier   *auth.Verifier
	client     *http.Client
}

func setup(t *testing.T) *env {
	t.Helper()

	originSrv := mockorigin.New()
	t.Cleanup(originSrv.Close)
	originSrv.SetJSON("/municipalities.json", `[
		{"id":3550308,"name":"São Paulo","uf":"SP"},
		{"id":3304557,"name":"Rio de Janeiro","uf":"RJ"},
		{"id":2927408,"name":"Salvador","uf":"BA"}
	]`)
	originSrv.SetJSON("/strategy.json", `{"view":"strategy"}`)
	originSrv.SetJSON("/routes.json", `{"view":"routes"}`)
	originSrv.SetJSON("/datasets/geo_sp.json", `{"dataset":"geo_sp"}`)

	store, err := storage.Open(filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		//nolint:errcheck
		store.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	originClient := origin.NewClient(originSrv.URL)
	cache := geocache.New(originClient, storage.CacheKV{S: store}, logger)

	verifier := auth.NewVerifier(jwtSecret)
	g := gate.New(verifier, scope.NewResolver(store), "nexus_session", logger,
		gate.WithSensitivePaths("/strategy", "/routes"),
		gate.WithDeniedPath("/access-denied"),
		gate.WithSignInPath("/sign-in"),
	)

	proxyHandler := proxy.NewHandler(cache, time.Hour, logger)
	adminHandler := admin.NewHandler(store, masterKey, logger)

	root := chi.NewRouter()
	root.Mount("/admin", adminHandler.NewRouter())
	root.Mount("/", proxy.NewRouter(proxyHandler, g, logger))

	gatewaySrv := httptest.NewServer(root)
	t.Cleanup(gatewaySrv.Close)

	return &env{
		gatewayURL: gatewaySrv.URL,
		origin:     originSrv,
		verifier:   verifier,
		client: &http.Client{
			// Redirects are assertions in these tests, not detours to follow.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// token signs a credential for the given subject and role.
func (e *env) token(t *testing.T, subject string, role auth.Role) string {
	t.Helper()
	tok, err := e.verifier.Sign(subject, role, time.Hour)
	require.NoError(t, err)
	return tok
}

// get performs an authenticated GET without following redirects.
func (e *env) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", e.gatewayURL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	return resp
}
