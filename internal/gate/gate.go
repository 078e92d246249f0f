// Package gate enforces credential verification and access scoping at the
// boundary of protected routes.
package gate

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nexus-geo/nexus-gateway/internal/auth"
	"github.com/nexus-geo/nexus-gateway/internal/metrics"
	"github.com/nexus-geo/nexus-gateway/internal/scope"
)

// Gate authenticates requests and routes restricted viewers away from
// sensitive areas.
type Gate struct {
	verifier       *auth.Verifier
	resolver       *scope.Resolver
	logger         *slog.Logger
	cookieName     string
	sensitivePaths []string
	deniedPath     string
	signInPath     string
	now            func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithSensitivePaths sets the path prefixes classified as sensitive.
func WithSensitivePaths(prefixes ...string) Option {
	return func(g *Gate) {
		g.sensitivePaths = prefixes
	}
}

// WithDeniedPath sets the redirect destination for denied sensitive requests.
func WithDeniedPath(path string) Option {
	return func(g *Gate) {
		g.deniedPath = path
	}
}

// WithSignInPath sets the redirect destination for browser requests whose
// session cookie fails verification.
func WithSignInPath(path string) Option {
	return func(g *Gate) {
		g.signInPath = path
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// New creates a Gate. If logger is nil, slog.Default() is used.
func New(verifier *auth.Verifier, resolver *scope.Resolver, cookieName string, logger *slog.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		verifier:   verifier,
		resolver:   resolver,
		logger:     logger,
		cookieName: cookieName,
		deniedPath: "/access-denied",
		signInPath: "/sign-in",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware returns chi-compatible middleware enforcing the gate.
//
// Credential extraction order is cookie first, then Authorization header;
// existing browser sessions depend on the cookie winning when both are
// present. An invalid cookie is a browser session gone bad: the cookie is
// cleared and the request redirected to the sign-in path. An invalid bearer
// token is an API caller and gets a 401. On sensitive paths a viewer holding
// at least one concrete grant is redirected to the denied destination;
// unrestricted roles and viewers with zero grants pass through.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := g.extractCredential(r)
		if token == "" {
			metrics.RecordAuthFailure("missing_credential")
			writeJSONError(w, http.StatusUnauthorized, "missing credential")
			return
		}

		claims, err := g.verifier.Verify(token)
		if err != nil {
			reason := "invalid_credential"
			if errors.Is(err, auth.ErrMalformedCredential) {
				reason = "malformed_credential"
			}
			metrics.RecordAuthFailure(reason)
			g.logger.Warn("credential rejected", "reason", reason, "remote_addr", r.RemoteAddr)
			if fromCookie {
				g.clearCookie(w)
				http.Redirect(w, r, g.signInPath, http.StatusSeeOther)
				return
			}
			writeJSONError(w, http.StatusUnauthorized, "invalid credential")
			return
		}

		ctx := WithClaims(r.Context(), claims)

		if g.isSensitive(r.URL.Path) && claims.Role == auth.RoleViewer {
			sc, err := g.resolver.Resolve(ctx, claims, g.now())
			if err != nil {
				// Fail closed: an unreachable grant store must not
				// grant or permanently deny access on its own.
				metrics.RecordAuthFailure("scope_unavailable")
				g.logger.Error("scope resolution failed", "subject", claims.Subject, "error", err)
				writeJSONError(w, http.StatusServiceUnavailable, "access could not be determined")
				return
			}
			if sc.HasGrants() {
				metrics.RecordAuthFailure("sensitive_denied")
				g.logger.Info("viewer denied sensitive area",
					"subject", claims.Subject, "path", r.URL.Path)
				http.Redirect(w, r, g.deniedPath, http.StatusSeeOther)
				return
			}
			ctx = WithScope(ctx, sc)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ResolveScope resolves and attaches the caller's scope for handlers that
// filter data by it. Requests without verified claims are rejected.
func (g *Gate) ResolveScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ScopeFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			writeJSONError(w, http.StatusUnauthorized, "missing credential")
			return
		}
		sc, err := g.resolver.Resolve(r.Context(), claims, g.now())
		if err != nil {
			metrics.RecordAuthFailure("scope_unavailable")
			g.logger.Error("scope resolution failed", "subject", claims.Subject, "error", err)
			writeJSONError(w, http.StatusServiceUnavailable, "access could not be determined")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), sc)))
	})
}

// RequireAdmin rejects requests whose verified role is not admin.
// It must be used after Middleware.
func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil || claims.Role != auth.RoleAdmin {
			writeJSONError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractCredential returns the raw token and whether it came from the
// session cookie.
func (g *Gate) extractCredential(r *http.Request) (string, bool) {
	if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return extractBearerToken(r), false
}

func (g *Gate) isSensitive(path string) bool {
	for _, p := range g.sensitivePaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// clearCookie expires the session cookie on the client.
func (g *Gate) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// extractBearerToken gets the token from an "Authorization: Bearer <token>" header.
func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
