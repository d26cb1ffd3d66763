package http

import (
	"net/http"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"trafficlens/internal/analytics"
	"trafficlens/internal/preferences"
)

var preferencesManager *preferences.Manager

// ConfigurePreferences installs the preferences store used by the
// preferences endpoints.
func ConfigurePreferences(m *preferences.Manager) {
	preferencesManager = m
}

// PreferencesShowAction returns the saved preferences for a context.
func PreferencesShowAction(ctx *cartridge.Context) error {
	contextKey := ctx.Params("context")
	prefs, err := preferencesManager.Get(contextKey)
	if err != nil {
		ctx.Logger.Error("Failed to load preferences", slog.String("context", contextKey), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load preferences",
			"code":  "server_error",
		})
	}
	return ctx.JSON(fiber.Map{"preferences": prefs})
}

// PreferencesUpdateAction saves preferences for a context.
func PreferencesUpdateAction(ctx *cartridge.Context) error {
	contextKey := ctx.Params("context")

	var prefs analytics.Preferences
	if err := ctx.BodyParser(&prefs); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "invalid_request",
		})
	}

	if err := preferencesManager.Set(contextKey, &prefs); err != nil {
		ctx.Logger.Error("Failed to save preferences", slog.String("context", contextKey), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save preferences",
			"code":  "server_error",
		})
	}
	return ctx.JSON(fiber.Map{"preferences": &prefs})
}
