package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nexus-geo/nexus-gateway/internal/storage"
)

// TokenAuthMiddleware validates AccessKey tokens for the admin API.
// It accepts the configured master key or any stored admin token.
func (h *Handler) TokenAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessKey := strings.TrimSpace(r.Header.Get("AccessKey"))
		if accessKey == "" {
			WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "missing admin token")
			return
		}

		if h.isMasterKey(accessKey) {
			h.logger.Debug("admin API request via master key")
			next.ServeHTTP(w, r)
			return
		}

		token, err := h.storage.VerifyAdminToken(r.Context(), accessKey)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				h.logger.Warn("invalid admin token attempt", "remote_addr", r.RemoteAddr)
				WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid admin token")
				return
			}
			h.logger.Error("admin token verification failed", "error", err)
			WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
			return
		}

		h.logger.Debug("admin API request via stored token", "token_name", token.Name)
		next.ServeHTTP(w, r)
	})
}
