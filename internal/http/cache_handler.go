package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"trafficlens/internal/analytics"
)

var cacheManager analytics.CacheManager

// ConfigureCache installs the cache manager used by the cache admin
// endpoints.
func ConfigureCache(m analytics.CacheManager) {
	cacheManager = m
}

// CacheClearAction drops every cached query result.
func CacheClearAction(ctx *cartridge.Context) error {
	if cacheManager == nil {
		return ctx.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Cache not configured",
			"code":  "server_error",
		})
	}
	cacheManager.ClearAll()
	return ctx.JSON(fiber.Map{"status": "ok"})
}

// CacheToggleAction enables or disables the query cache at runtime.
func CacheToggleAction(ctx *cartridge.Context) error {
	if cacheManager == nil {
		return ctx.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Cache not configured",
			"code":  "server_error",
		})
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "invalid_request",
		})
	}
	cacheManager.SetEnabled(body.Enabled)
	return ctx.JSON(fiber.Map{"status": "ok", "enabled": body.Enabled})
}
