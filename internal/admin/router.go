package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates the admin router.
func (h *Handler) NewRouter() chi.Router {
	r := chi.NewRouter()

	// Public endpoints (no auth)
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)

	// Admin API (token auth)
	r.Route("/api", func(r chi.Router) {
		r.Use(h.TokenAuthMiddleware)

		r.Get("/grants", h.HandleListGrants)
		r.Post("/grants", h.HandleCreateGrant)
		r.Delete("/grants/{id}", h.HandleDeleteGrant)

		r.Get("/tokens", h.HandleListTokens)
		r.Post("/tokens", h.HandleCreateToken)
		r.Delete("/tokens/{id}", h.HandleDeleteToken)
	})

	return r
}

// HandleHealth returns OK if the process is alive.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady returns OK if the service is ready to serve requests.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
