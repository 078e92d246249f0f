// Package proxy implements the dataset endpoints served to dashboard clients.
package proxy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nexus-geo/nexus-gateway/internal/gate"
	"github.com/nexus-geo/nexus-gateway/internal/geocache"
)

// Municipality is one entry of the origin's municipality listing.
type Municipality struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	UF   string `json:"uf"`
}

// Handler serves cached datasets from the origin.
type Handler struct {
	cache  *geocache.Cache
	maxAge time.Duration
	logger *slog.Logger
}

// NewHandler creates a proxy handler.
// If logger is nil, slog.Default() will be used.
func NewHandler(cache *geocache.Cache, maxAge time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cache: cache, maxAge: maxAge, logger: logger}
}

// HandleGetDataset serves a named dataset document.
// GET /datasets/{key}
func (h *Handler) HandleGetDataset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !validDatasetKey(key) {
		writeError(w, http.StatusBadRequest, "invalid dataset key")
		return
	}

	res, err := h.cache.Fetch(r.Context(), "/datasets/"+key+".json", key, h.maxAge)
	if err != nil {
		h.handleCacheError(w, key, err)
		return
	}
	writeDataset(w, res)
}

// HandleListMunicipalities serves the municipality listing filtered to the
// caller's scope. Requires a resolved scope in context.
// GET /municipalities
func (h *Handler) HandleListMunicipalities(w http.ResponseWriter, r *http.Request) {
	sc := gate.ScopeFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	res, err := h.cache.Fetch(r.Context(), "/municipalities.json", "municipalities", h.maxAge)
	if err != nil {
		h.handleCacheError(w, "municipalities", err)
		return
	}

	var all []Municipality
	if err := json.Unmarshal(res.Data, &all); err != nil {
		h.logger.Error("municipality listing is not decodable", "error", err)
		writeError(w, http.StatusBadGateway, "origin returned malformed listing")
		return
	}

	filtered := all
	if !sc.Unrestricted {
		filtered = make([]Municipality, 0, len(all))
		for _, m := range all {
			if sc.AllowsMunicipality(m.ID, m.UF) {
				filtered = append(filtered, m)
			}
		}
	}

	setCacheHeader(w, res.FromCache)
	writeJSON(w, http.StatusOK, filtered)
}

// HandleInvalidateDataset drops a dataset from both cache tiers.
// DELETE /datasets/{key} (admin only)
func (h *Handler) HandleInvalidateDataset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !validDatasetKey(key) {
		writeError(w, http.StatusBadRequest, "invalid dataset key")
		return
	}
	if err := h.cache.Invalidate(r.Context(), key); err != nil {
		h.logger.Error("cache invalidation failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.logger.Info("dataset invalidated", "key", key)
	w.WriteHeader(http.StatusNoContent)
}

// HandleStrategy serves the strategy view dataset.
// GET /strategy (sensitive)
func (h *Handler) HandleStrategy(w http.ResponseWriter, r *http.Request) {
	h.serveNamed(w, r, "strategy")
}

// HandleRoutes serves the route-planning dataset.
// GET /routes (sensitive)
func (h *Handler) HandleRoutes(w http.ResponseWriter, r *http.Request) {
	h.serveNamed(w, r, "routes")
}

func (h *Handler) serveNamed(w http.ResponseWriter, r *http.Request, key string) {
	res, err := h.cache.Fetch(r.Context(), "/"+key+".json", key, h.maxAge)
	if err != nil {
		h.handleCacheError(w, key, err)
		return
	}
	writeDataset(w, res)
}

// handleCacheError maps cache failures to responses. A fully exhausted
// fetch renders as "no data" rather than a server crash.
func (h *Handler) handleCacheError(w http.ResponseWriter, key string, err error) {
	if errors.Is(err, geocache.ErrFetchFailed) {
		h.logger.Warn("dataset unavailable", "key", key, "error", err)
		writeError(w, http.StatusNotFound, "dataset unavailable")
		return
	}
	h.logger.Error("dataset fetch failed", "key", key, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// validDatasetKey restricts keys to a safe slug alphabet so they cannot
// traverse origin paths.
func validDatasetKey(key string) bool {
	if key == "" || len(key) > 128 {
		return false
	}
	for _, c := range key {
		isAlphanumeric := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isAlphanumeric && c != '-' && c != '_' {
			return false
		}
	}
	return true
}

func setCacheHeader(w http.ResponseWriter, fromCache bool) {
	if fromCache {
		w.Header().Set("X-Nexus-Cache", "hit")
	} else {
		w.Header().Set("X-Nexus-Cache", "miss")
	}
}

func writeDataset(w http.ResponseWriter, res *geocache.Result) {
	setCacheHeader(w, res.FromCache)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck
	w.Write(res.Data)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
