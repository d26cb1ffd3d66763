// Package internal contains core application functionality
package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"trafficlens/internal/analytics"
	"trafficlens/internal/cache"
	"trafficlens/internal/config"
	"trafficlens/internal/http"
	"trafficlens/internal/preferences"
)

// statsCORSConfig is the CORS setup shared by the stats API endpoints.
var statsCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,PUT,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization",
}

// MountAppRoutes wires the stats engine and mounts all routes on the server.
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	logger := srv.GetLogger()
	db := srv.GetDBManager().GetConnection()

	executor := analytics.NewExecutor(db, logger,
		analytics.WithSummaryTables(cfg.SummaryTablesEnabled),
	)
	prefsManager := preferences.NewManager(db, logger)

	opts := []analytics.HandlerOption{analytics.WithPreferences(prefsManager)}
	if cfg.CacheEnabled {
		cacheManager := cache.NewManager(time.Duration(cfg.CacheTTLSeconds) * time.Second)
		opts = append(opts, analytics.WithCache(cacheManager, cfg.CacheReadEnabled))
		http.ConfigureCache(cacheManager)
	}
	handler := analytics.NewHandler(executor, logger, opts...)

	http.ConfigureStats(handler)
	http.ConfigurePreferences(prefsManager)

	// rate limiting would get in the way of tests; production only
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}
	statsRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	statsAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{statsRateLimiter},
		CORSConfig:       statsCORSConfig,
	}

	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	srv.Post("/api/v1/stats/query", http.StatsQueryAction, statsAPIConfig)
	srv.Post("/api/v1/stats/query/batch", http.StatsBatchAction, statsAPIConfig)
	srv.Options("/api/v1/stats/query", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, statsAPIConfig)
	srv.Options("/api/v1/stats/query/batch", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, statsAPIConfig)

	srv.Get("/api/v1/stats/preferences/:context", http.PreferencesShowAction, statsAPIConfig)
	srv.Put("/api/v1/stats/preferences/:context", http.PreferencesUpdateAction, statsAPIConfig)

	srv.Post("/api/v1/stats/cache/clear", http.CacheClearAction, statsAPIConfig)
	srv.Post("/api/v1/stats/cache/toggle", http.CacheToggleAction, statsAPIConfig)
}
