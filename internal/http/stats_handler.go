package http

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"trafficlens/internal/analytics"
)

// statsHandler is the process-wide query handler, configured once at route
// mount time.
var statsHandler *analytics.Handler

// ConfigureStats installs the analytics handler used by the stats endpoints.
func ConfigureStats(h *analytics.Handler) {
	statsHandler = h
}

// StatsQueryAction executes one analytics query.
func StatsQueryAction(ctx *cartridge.Context) error {
	if statsHandler == nil {
		return ctx.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Stats engine not configured",
			"code":  "server_error",
		})
	}

	var req analytics.Request
	if err := ctx.BodyParser(&req); err != nil {
		ctx.Logger.Debug("Failed to parse stats query", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "invalid_request",
		})
	}

	resp, err := statsHandler.Handle(req)
	if err != nil {
		return statsError(ctx, err)
	}
	return ctx.JSON(resp)
}

// StatsBatchAction executes a batch of named analytics queries.
func StatsBatchAction(ctx *cartridge.Context) error {
	if statsHandler == nil {
		return ctx.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Stats engine not configured",
			"code":  "server_error",
		})
	}

	var req analytics.BatchRequest
	if err := ctx.BodyParser(&req); err != nil {
		ctx.Logger.Debug("Failed to parse stats batch", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "invalid_request",
		})
	}

	resp, err := statsHandler.HandleBatch(req)
	if err != nil {
		return statsError(ctx, err)
	}
	return ctx.JSON(resp)
}

// statsError maps engine errors onto HTTP responses: validation failures are
// the caller's fault, everything else is a 500.
func statsError(ctx *cartridge.Context, err error) error {
	var queryErr *analytics.QueryError
	if errors.As(err, &queryErr) {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": queryErr.Message,
			"code":  queryErr.Code,
		})
	}

	ctx.Logger.Error("Stats query failed", slog.Any("error", err))
	return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"error": "Query execution failed",
		"code":  analytics.ErrorCode(err),
	})
}
