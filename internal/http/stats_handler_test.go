package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/testsupport"
)

func postStatsQuery(t *testing.T, app *fiber.App, path string, payload map[string]any) (*http.Response, map[string]any) {
	t.Helper()

	jsonPayload, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(jsonPayload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp, body
}

func TestStatsQueryEndpoint(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)

	for i := 0; i < 3; i++ {
		at := "2024-03-10 10:00:00"
		v := testsupport.CreateVisitor(t, db, fmt.Sprintf("h-us-%d", i), at,
			testsupport.VisitorSpec{Country: "US"})
		testsupport.CreateSession(t, db, v.ID, at, at, 0, 1, 0)
	}
	v := testsupport.CreateVisitor(t, db, "h-de", "2024-03-11 10:00:00",
		testsupport.VisitorSpec{Country: "DE"})
	testsupport.CreateSession(t, db, v.ID, "2024-03-11 10:00:00", "2024-03-11 10:00:00", 0, 1, 0)

	app := testsupport.CreateMinimalTestApp(t, db)

	t.Run("returns grouped rows", func(t *testing.T) {
		resp, body := postStatsQuery(t, app, "/api/v1/stats/query", map[string]any{
			"sources":   []string{"visitors"},
			"group_by":  []string{"country"},
			"date_from": "2024-03-01",
			"date_to":   "2024-03-31",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		data, ok := body["data"].(map[string]any)
		require.True(t, ok, "expected data envelope, got: %v", body)
		rows, ok := data["rows"].([]any)
		require.True(t, ok)
		require.Len(t, rows, 2)

		first, ok := rows[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "US", first["country"])
		assert.EqualValues(t, 3, first["visitors"])

		meta, ok := body["meta"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "2024-03-01 00:00:00", meta["date_from"])
		assert.EqualValues(t, 2, meta["total"])
	})

	t.Run("rejects unknown source", func(t *testing.T) {
		resp, body := postStatsQuery(t, app, "/api/v1/stats/query", map[string]any{
			"sources":   []string{"nope"},
			"date_from": "2024-03-01",
			"date_to":   "2024-03-31",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_source", body["code"])
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/stats/query", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestStatsBatchEndpoint(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)

	at := "2024-03-10 10:00:00"
	visitor := testsupport.CreateVisitor(t, db, "h-batch", at, testsupport.VisitorSpec{Country: "US"})
	testsupport.CreateSession(t, db, visitor.ID, at, at, 0, 1, 0)

	app := testsupport.CreateMinimalTestApp(t, db)

	resp, body := postStatsQuery(t, app, "/api/v1/stats/query/batch", map[string]any{
		"date_from": "2024-03-01",
		"date_to":   "2024-03-31",
		"queries": []map[string]any{
			{"id": "totals", "sources": []string{"visitors"}},
		},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	items, ok := body["items"].(map[string]any)
	require.True(t, ok, "expected items envelope, got: %v", body)
	require.Contains(t, items, "totals")
}
