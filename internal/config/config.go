package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

type Config struct {
	Port            string
	Env             string
	UpstreamURL     string
	APIBaseURL      string
	CacheGeneration string
	PrecachePaths   []string
	RedisAddr       string
	AdminToken      string
	LocalStorePath  string
}

func Load() Config {
	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		UpstreamURL:     getEnv("UPSTREAM_URL", "http://localhost:8000"),
		CacheGeneration: getEnv("CACHE_GENERATION", ""),
		PrecachePaths:   splitList(getEnv("PRECACHE_PATHS", "/,/index.html,/manifest.json")),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		AdminToken:      getEnv("ADMIN_TOKEN", "dev-admin-token"),
		LocalStorePath:  getEnv("LOCAL_STORE_PATH", "habi.db"),
	}
	cfg.APIBaseURL = getEnv("API_BASE_URL", cfg.UpstreamURL)

	// Without a pinned generation each boot gets a fresh bucket, which is
	// correct but loses warm cache across restarts.
	if cfg.CacheGeneration == "" {
		cfg.CacheGeneration = uuid.NewString()
	}

	if cfg.Env == "production" && cfg.AdminToken == "dev-admin-token" {
		slog.Error("ADMIN_TOKEN must be set in production environment")
		os.Exit(1)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
