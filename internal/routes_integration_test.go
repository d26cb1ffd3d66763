package internal

import (
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
)

func TestStatsRoutesRegistered(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	expected := map[string]string{
		"/api/v1/stats/query":                fiber.MethodPost,
		"/api/v1/stats/query/batch":          fiber.MethodPost,
		"/api/v1/stats/preferences/:context": fiber.MethodGet,
		"/api/v1/stats/cache/clear":          fiber.MethodPost,
		"/_health":                           fiber.MethodGet,
	}

	found := map[string]bool{}
	for _, route := range routes {
		if method, ok := expected[route.Path]; ok && route.Method == method {
			found[route.Path] = true
		}
	}

	for path := range expected {
		require.Truef(t, found[path], "expected route %s to be registered", path)
	}
}

func TestStatsQueryRouteRateLimited(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	var queryRoute *fiber.Route
	for idx := range routes {
		route := routes[idx]
		if route.Method == fiber.MethodPost && route.Path == "/api/v1/stats/query" {
			queryRoute = &routes[idx]
			break
		}
	}

	require.NotNil(t, queryRoute, "expected stats query route to be registered")

	// The rate limiter is wrapped in a conditional function that only applies
	// in production. In test environment, it passes through but the wrapper
	// still exists. Check for the conditional wrapper (defined in MountAppRoutes).
	hasRateLimiter := false
	var handlerNames []string
	for _, handler := range queryRoute.Handlers {
		name := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
		handlerNames = append(handlerNames, name)
		if strings.Contains(name, "middleware/limiter") || strings.Contains(name, "MountAppRoutes.func") {
			hasRateLimiter = true
			break
		}
	}

	require.Truef(t, hasRateLimiter, "expected rate limiter middleware for stats query route, handlers: %v", handlerNames)
}
