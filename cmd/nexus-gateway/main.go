// Package main provides the entry point for the NEXUS gateway server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/nexus-geo/nexus-gateway/internal/admin"
	"github.com/nexus-geo/nexus-gateway/internal/auth"
	"github.com/nexus-geo/nexus-gateway/internal/config"
	"github.com/nexus-geo/nexus-gateway/internal/gate"
	"github.com/nexus-geo/nexus-gateway/internal/geocache"
	"github.com/nexus-geo/nexus-gateway/internal/metrics"
	"github.com/nexus-geo/nexus-gateway/internal/origin"
	"github.com/nexus-geo/nexus-gateway/internal/proxy"
	"github.com/nexus-geo/nexus-gateway/internal/scope"
	"github.com/nexus-geo/nexus-gateway/internal/storage"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nexus-gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := metrics.Init(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck
		store.Close()
	}()

	originClient := origin.NewClient(cfg.OriginBaseURL,
		origin.WithAccessKey(cfg.OriginAccessKey))

	var durable geocache.KV = storage.CacheKV{S: store}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		durable = geocache.NewRedisKV(rdb, "geocache")
		logger.Info("durable cache tier on redis", "addr", cfg.RedisAddr)
	}
	cache := geocache.New(originClient, durable, logger)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	resolver := scope.NewResolver(store)
	g := gate.New(verifier, resolver, cfg.SessionCookie, logger,
		gate.WithSensitivePaths("/strategy", "/routes"),
		gate.WithDeniedPath("/access-denied"),
		gate.WithSignInPath("/sign-in"),
	)

	proxyHandler := proxy.NewHandler(cache, cfg.CacheMaxAge, logger)
	adminHandler := admin.NewHandler(store, cfg.AdminAPIKey, logger)

	root := chi.NewRouter()
	root.Mount("/admin", adminHandler.NewRouter())
	root.Mount("/", proxy.NewRouter(proxyHandler, g, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSrv := &http.Server{
		Addr:    cfg.MetricsListenAddr,
		Handler: metricsMux(),
	}
	go func() {
		logger.Info("metrics listener starting", "addr", cfg.MetricsListenAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("nexus gateway starting", "version", version, "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	//nolint:errcheck
	metricsSrv.Shutdown(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// newLogger builds a JSON slog logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
