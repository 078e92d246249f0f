package proxy

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexus-geo/nexus-gateway/internal/gate"
	"github.com/nexus-geo/nexus-gateway/internal/metrics"
	"github.com/nexus-geo/nexus-gateway/internal/middleware"
)

// NewRouter creates a chi router with all dataset endpoints behind the gate.
func NewRouter(handler *Handler, g *gate.Gate, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.HTTPLogging(logger))
	r.Use(metrics.Middleware)
	r.Use(g.Middleware)

	r.Get("/datasets/{key}", handler.HandleGetDataset)
	r.With(g.RequireAdmin).Delete("/datasets/{key}", handler.HandleInvalidateDataset)
	r.With(g.ResolveScope).Get("/municipalities", handler.HandleListMunicipalities)
	r.Get("/strategy", handler.HandleStrategy)
	r.Get("/routes", handler.HandleRoutes)

	return r
}
