package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/habi/habi-go/internal/cache"
	"github.com/habi/habi-go/internal/config"
	"github.com/habi/habi-go/internal/gateway"
	"github.com/habi/habi-go/internal/handler"
	"github.com/habi/habi-go/internal/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg := config.Load()

	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		slog.Error("invalid UPSTREAM_URL", "value", cfg.UpstreamURL, "error", err)
		os.Exit(1)
	}

	var store cache.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store = cache.NewRedisStore(client, "habi:cache")
		slog.Info("using redis cache store", "addr", cfg.RedisAddr)
	} else {
		store = cache.NewMemoryStore()
		slog.Info("using in-memory cache store")
	}

	gw := gateway.New(store, cfg.CacheGeneration)

	// Install and activate at boot; the admin API can redo both on deploy.
	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seedURLs := make([]string, 0, len(cfg.PrecachePaths))
	for _, path := range cfg.PrecachePaths {
		seedURLs = append(seedURLs, upstream.ResolveReference(&url.URL{Path: path}).String())
	}
	if err := gw.Install(bootCtx, seedURLs); err != nil {
		slog.Warn("precache install failed, serving network-first without seeds", "error", err)
	}
	if err := gw.Activate(bootCtx); err != nil {
		slog.Error("cache activation failed", "error", err)
		os.Exit(1)
	}

	adminHandler := handler.NewAdminHandler(gw, store, upstream)
	proxy := gateway.NewProxy(upstream, gw, slog.Default())

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(5, 10))
		r.Use(middleware.AdminAuth(cfg.AdminToken))
		r.Get("/admin/status", adminHandler.HandleStatus)
		r.Post("/admin/precache", adminHandler.HandlePrecache)
		r.Post("/admin/activate", adminHandler.HandleActivate)
	})

	r.Handle("/*", proxy)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("gateway starting",
			"port", cfg.Port,
			"env", cfg.Env,
			"upstream", upstream.String(),
			"generation", cfg.CacheGeneration,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gateway")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway stopped")
}
