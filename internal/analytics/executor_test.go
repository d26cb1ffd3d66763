package analytics_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/analytics"
	"trafficlens/internal/testsupport"
)

func fixedClock(value string) func() time.Time {
	t, _ := time.Parse("2006-01-02 15:04:05", value)
	return func() time.Time { return t.UTC() }
}

func mustQuery(t *testing.T, b *analytics.Builder) analytics.Query {
	t.Helper()
	q, err := b.Build()
	require.NoError(t, err)
	return q
}

func TestExecuteRawGrouping(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	exec := analytics.NewExecutor(db, testsupport.GetLogger(),
		analytics.WithSummaryTables(false))

	// five countries with distinct visitor counts
	counts := map[string]int{"US": 5, "DE": 4, "FR": 3, "BR": 2, "JP": 1}
	for country, n := range counts {
		for j := 0; j < n; j++ {
			hash := fmt.Sprintf("v-%s-%d", country, j)
			testsupport.CreateVisitor(t, db, hash, "2024-03-10 12:00:00", testsupport.VisitorSpec{Country: country})
		}
	}
	var visitors []analytics.Visitor
	require.NoError(t, db.Find(&visitors).Error)
	for _, v := range visitors {
		testsupport.CreateSession(t, db, v.ID, v.CreatedAt, v.CreatedAt, 60, 1, 0)
	}

	t.Run("orders by metric descending", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			GroupBy("country").
			DateRange("2024-03-01 00:00:00", "2024-03-31 23:59:59"))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 5)
		assert.EqualValues(t, 5, res.Total)
		assert.Equal(t, "US", res.Rows[0]["country"])
		assert.EqualValues(t, 5, res.Rows[0]["visitors"])
		assert.Equal(t, "JP", res.Rows[4]["country"])
		assert.EqualValues(t, 1, res.Rows[4]["visitors"])
	})

	t.Run("rows hold scalar values", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors", "sessions").
			GroupBy("country").
			DateRange("2024-03-01 00:00:00", "2024-03-31 23:59:59"))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.NotEmpty(t, res.Rows)
		for key, value := range res.Rows[0] {
			_, boxed := value.(*any)
			assert.Falsef(t, boxed, "column %s came back as a pointer", key)
		}
		// a boxed value would defeat numeric coercion downstream
		assert.EqualValues(t, 5, res.Rows[0]["visitors"])
	})

	t.Run("resolves country names", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			GroupBy("country").
			DateRange("2024-03-01 00:00:00", "2024-03-31 23:59:59"))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		assert.Equal(t, "United States", res.Rows[0]["country_name"])
	})

	t.Run("paginates with exact total", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			GroupBy("country").
			DateRange("2024-03-01 00:00:00", "2024-03-31 23:59:59").
			Paginate(2, 2))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 2)
		assert.EqualValues(t, 5, res.Total, "total spans every group, not the page")
		assert.Equal(t, "FR", res.Rows[0]["country"])
		assert.Equal(t, "BR", res.Rows[1]["country"])
	})

	t.Run("unknown order_by falls back to first source", func(t *testing.T) {
		ordered := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			GroupBy("country").
			DateRange("2024-03-01 00:00:00", "2024-03-31 23:59:59").
			OrderBy("no_such_column", "desc"))

		res, err := exec.Execute(ordered)
		require.NoError(t, err)
		assert.Equal(t, "US", res.Rows[0]["country"])
	})

	t.Run("filter narrows the group set", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			GroupBy("country").
			AddFilter("country", map[string]any{"in": []any{"US", "DE"}}).
			DateRange("2024-03-01 00:00:00", "2024-03-31 23:59:59"))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		assert.Len(t, res.Rows, 2)
		assert.EqualValues(t, 2, res.Total)
	})

	t.Run("range excludes outside activity", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			DateRange("2024-04-01 00:00:00", "2024-04-30 23:59:59").
			Format(analytics.FormatFlat))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		assert.EqualValues(t, 0, res.Rows[0]["visitors"])
	})
}

func TestExecuteRawMetrics(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	exec := analytics.NewExecutor(db, testsupport.GetLogger(),
		analytics.WithSummaryTables(false))

	_, uri := testsupport.CreateResource(t, db, "/home", "Home", "page", 1)

	// two sessions: one bounce with no views, one engaged with two views
	v1 := testsupport.CreateVisitor(t, db, "m-1", "2024-03-05 10:00:00", testsupport.VisitorSpec{})
	testsupport.CreateSession(t, db, v1.ID, "2024-03-05 10:00:00", "2024-03-05 10:00:00", 0, 0, 1)

	v2 := testsupport.CreateVisitor(t, db, "m-2", "2024-03-05 11:00:00", testsupport.VisitorSpec{})
	s2 := testsupport.CreateSession(t, db, v2.ID, "2024-03-05 11:00:00", "2024-03-05 11:05:00", 300, 2, 0)
	testsupport.CreateView(t, db, s2.ID, v2.ID, uri.ID, "2024-03-05 11:00:00")
	testsupport.CreateView(t, db, s2.ID, v2.ID, uri.ID, "2024-03-05 11:02:00")

	q := mustQuery(t, analytics.NewBuilder().
		Sources("visitors", "sessions", "views", "bounces", "bounce_rate", "avg_session_duration", "pages_per_session").
		DateRange("2024-03-01 00:00:00", "2024-03-31 23:59:59").
		Format(analytics.FormatFlat))

	res, err := exec.Execute(q)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]

	assert.EqualValues(t, 2, row["visitors"])
	assert.EqualValues(t, 2, row["sessions"])
	assert.EqualValues(t, 2, row["views"])
	assert.EqualValues(t, 1, row["bounces"])
	assert.InDelta(t, 50.0, row["bounce_rate"], 0.001)
	assert.InDelta(t, 150.0, row["avg_session_duration"], 0.001)
	assert.InDelta(t, 1.0, row["pages_per_session"], 0.001)
}

func TestExecuteTimeSeries(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	exec := analytics.NewExecutor(db, testsupport.GetLogger(),
		analytics.WithSummaryTables(false))

	for i, at := range []string{
		"2024-01-01 09:00:00", // Monday
		"2024-01-03 09:00:00",
		"2024-01-10 09:00:00", // next week
		"2024-02-01 09:00:00", // next month
	} {
		v := testsupport.CreateVisitor(t, db, fmt.Sprintf("ts-%d", i), at, testsupport.VisitorSpec{})
		testsupport.CreateSession(t, db, v.ID, at, at, 0, 1, 0)
	}

	t.Run("daily buckets sort chronologically", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			GroupBy("date").
			DateRange("2024-01-01 00:00:00", "2024-02-29 23:59:59"))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 4)
		assert.Equal(t, "2024-01-01", res.Rows[0]["date"])
		assert.Equal(t, "2024-02-01", res.Rows[3]["date"])
	})

	t.Run("week buckets start on Monday and carry a date", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			GroupBy("week").
			DateRange("2024-01-01 00:00:00", "2024-01-31 23:59:59"))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "2024-01-01", res.Rows[0]["week_start"])
		assert.Equal(t, "2024-01-01", res.Rows[0]["date"])
		assert.EqualValues(t, 2, res.Rows[0]["visitors"])
		assert.Equal(t, "2024-01-08", res.Rows[1]["week_start"])
	})

	t.Run("month rows get first-of-month as date", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			GroupBy("month").
			DateRange("2024-01-01 00:00:00", "2024-02-29 23:59:59"))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "2024-01", res.Rows[0]["month"])
		assert.Equal(t, "2024-01-01", res.Rows[0]["date"])
		assert.EqualValues(t, 3, res.Rows[0]["visitors"])
		assert.Equal(t, "2024-02-01", res.Rows[1]["date"])
	})
}

func TestExecuteSummaryPaths(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	// pin "today" far past the seeded range so the summary path is taken
	exec := analytics.NewExecutor(db, testsupport.GetLogger(),
		analytics.WithClock(fixedClock("2024-06-15 12:00:00")))

	// summary rows disagree with raw on purpose, proving which path served
	testsupport.CreateSummaryTotal(t, db, "2024-03-01", 10, 30, 12, 3, 1200)
	testsupport.CreateSummaryTotal(t, db, "2024-03-02", 20, 50, 24, 6, 2400)

	t.Run("totals derive from component sums", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors", "views", "bounce_rate", "avg_session_duration").
			DateRange("2024-03-01 00:00:00", "2024-03-02 23:59:59").
			Format(analytics.FormatFlat))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		row := res.Rows[0]
		assert.EqualValues(t, 30, row["visitors"])
		assert.EqualValues(t, 80, row["views"])
		assert.InDelta(t, 25.0, row["bounce_rate"], 0.001)
		assert.InDelta(t, 100.0, row["avg_session_duration"], 0.001)
	})

	t.Run("daily series reads summary buckets", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			GroupBy("date").
			DateRange("2024-03-01 00:00:00", "2024-03-02 23:59:59"))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "2024-03-01", res.Rows[0]["date"])
		assert.EqualValues(t, 10, res.Rows[0]["visitors"])
		assert.EqualValues(t, 20, res.Rows[1]["visitors"])
	})

	t.Run("empty summary range falls back to raw", func(t *testing.T) {
		v := testsupport.CreateVisitor(t, db, "fb-1", "2023-11-05 10:00:00", testsupport.VisitorSpec{})
		testsupport.CreateSession(t, db, v.ID, "2023-11-05 10:00:00", "2023-11-05 10:00:00", 0, 1, 0)

		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			DateRange("2023-11-01 00:00:00", "2023-11-30 23:59:59").
			Format(analytics.FormatFlat))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		assert.EqualValues(t, 1, res.Rows[0]["visitors"])
	})

	t.Run("filters force the raw path", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			AddFilter("country", "US").
			DateRange("2024-03-01 00:00:00", "2024-03-02 23:59:59").
			Format(analytics.FormatFlat))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		// summary says 30, raw has no matching sessions
		assert.EqualValues(t, 0, res.Rows[0]["visitors"])
	})

	t.Run("non summary capable source forces raw", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("events").
			DateRange("2024-03-01 00:00:00", "2024-03-02 23:59:59").
			Format(analytics.FormatFlat))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		assert.EqualValues(t, 0, res.Rows[0]["events"])
	})
}

func TestExecutePageSummary(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	exec := analytics.NewExecutor(db, testsupport.GetLogger(),
		analytics.WithClock(fixedClock("2024-06-15 12:00:00")))

	home, _ := testsupport.CreateResource(t, db, "/home", "Home", "page", 1)
	pricing, _ := testsupport.CreateResource(t, db, "/pricing", "", "page", 1)
	testsupport.CreateSummary(t, db, "2024-03-01", home.ID, 40, 90, 45, 5, 4000)
	testsupport.CreateSummary(t, db, "2024-03-01", pricing.ID, 15, 20, 16, 8, 900)

	q := mustQuery(t, analytics.NewBuilder().
		Sources("visitors", "views").
		GroupBy("page").
		DateRange("2024-03-01 00:00:00", "2024-03-05 23:59:59").
		Paginate(1, 10))

	res, err := exec.Execute(q)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.EqualValues(t, 2, res.Total)

	top := res.Rows[0]
	assert.EqualValues(t, home.ID, top["page_id"])
	assert.Equal(t, "/home", top["page_uri"])
	assert.Equal(t, "Home", top["page_title"])
	assert.EqualValues(t, 40, top["visitors"])
	assert.EqualValues(t, 90, top["views"])

	second := res.Rows[1]
	assert.Equal(t, "/pricing", second["page_title"], "empty titles fall back to the uri")
}

func TestExecuteHybrid(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	today := "2024-03-10"
	exec := analytics.NewExecutor(db, testsupport.GetLogger(),
		analytics.WithClock(fixedClock(today+" 15:00:00")))

	// closed days live only in the summary table
	testsupport.CreateSummaryTotal(t, db, "2024-03-08", 10, 25, 12, 2, 1200)
	testsupport.CreateSummaryTotal(t, db, "2024-03-09", 20, 45, 22, 4, 2200)

	// today's traffic lives only in the raw tables
	_, uri := testsupport.CreateResource(t, db, "/live", "Live", "page", 1)
	for i := 0; i < 3; i++ {
		at := fmt.Sprintf("%s 0%d:30:00", today, i+1)
		testsupport.SeedVisit(t, db, fmt.Sprintf("today-%d", i), at, uri.ID, testsupport.VisitorSpec{})
	}

	t.Run("totals merge closed days with today", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors", "views", "sessions").
			DateRange("2024-03-08 00:00:00", today+" 23:59:59").
			Format(analytics.FormatFlat))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		row := res.Rows[0]
		assert.EqualValues(t, 33, row["visitors"])
		assert.EqualValues(t, 73, row["views"])
		assert.EqualValues(t, 37, row["sessions"])
	})

	t.Run("daily series appends a fresh today bucket", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			GroupBy("date").
			DateRange("2024-03-08 00:00:00", today+" 23:59:59"))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 3)
		assert.Equal(t, "2024-03-08", res.Rows[0]["date"])
		assert.EqualValues(t, 10, res.Rows[0]["visitors"])
		assert.Equal(t, today, res.Rows[2]["date"])
		assert.EqualValues(t, 3, res.Rows[2]["visitors"])
	})

	t.Run("weekly series merges today into its open bucket", func(t *testing.T) {
		// 2024-03-10 is a Sunday, same ISO week as the 8th and 9th
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			GroupBy("week").
			DateRange("2024-03-04 00:00:00", today+" 23:59:59"))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, "2024-03-04", res.Rows[0]["week_start"])
		assert.EqualValues(t, 33, res.Rows[0]["visitors"])
	})

	t.Run("range entirely today skips the split", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			DateRange(today+" 00:00:00", today+" 23:59:59").
			Format(analytics.FormatFlat))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		assert.EqualValues(t, 3, res.Rows[0]["visitors"])
	})
}

func TestSummaryMatchesRaw(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	// identical activity recorded in both the fact and summary tables
	_, uri := testsupport.CreateResource(t, db, "/a", "A", "page", 1)
	days := []string{"2024-02-01", "2024-02-02"}
	for d, day := range days {
		for i := 0; i < 4; i++ {
			at := fmt.Sprintf("%s 1%d:00:00", day, i)
			testsupport.SeedVisit(t, db, fmt.Sprintf("eq-%d-%d", d, i), at, uri.ID, testsupport.VisitorSpec{})
		}
		testsupport.CreateSummaryTotal(t, db, day, 4, 4, 4, 0, 0)
	}

	q := mustQuery(t, analytics.NewBuilder().
		Sources("visitors", "views", "sessions").
		DateRange("2024-02-01 00:00:00", "2024-02-02 23:59:59").
		Format(analytics.FormatFlat))

	clock := fixedClock("2024-06-15 12:00:00")
	summaryExec := analytics.NewExecutor(db, testsupport.GetLogger(), analytics.WithClock(clock))
	rawExec := analytics.NewExecutor(db, testsupport.GetLogger(),
		analytics.WithClock(clock), analytics.WithSummaryTables(false))

	fromSummary, err := summaryExec.Execute(q)
	require.NoError(t, err)
	fromRaw, err := rawExec.Execute(q)
	require.NoError(t, err)

	require.Len(t, fromSummary.Rows, 1)
	require.Len(t, fromRaw.Rows, 1)
	for _, name := range []string{"visitors", "views", "sessions"} {
		assert.EqualValues(t, fromRaw.Rows[0][name], fromSummary.Rows[0][name], name)
	}
}

func TestExecuteTotals(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	exec := analytics.NewExecutor(db, testsupport.GetLogger(),
		analytics.WithSummaryTables(false))

	for i, country := range []string{"US", "US", "DE"} {
		at := "2024-03-05 10:00:00"
		v := testsupport.CreateVisitor(t, db, fmt.Sprintf("tot-%d", i), at, testsupport.VisitorSpec{Country: country})
		testsupport.CreateSession(t, db, v.ID, at, at, 0, 1, 0)
	}

	q := mustQuery(t, analytics.NewBuilder().
		Sources("visitors").
		GroupBy("country").
		DateRange("2024-03-01 00:00:00", "2024-03-31 23:59:59").
		Paginate(1, 1))

	totals, err := exec.ExecuteTotals(q)
	require.NoError(t, err)
	assert.EqualValues(t, 3, totals["visitors"], "totals ignore grouping and pagination")
}

func TestExecuteExclusions(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	exec := analytics.NewExecutor(db, testsupport.GetLogger())

	testsupport.CreateExclusion(t, db, "2024-03-01", "bot", 7)
	testsupport.CreateExclusion(t, db, "2024-03-02", "blacklist", 3)

	q := mustQuery(t, analytics.NewBuilder().
		Sources("exclusions").
		DateRange("2024-03-01", "2024-03-02").
		Format(analytics.FormatFlat))

	res, err := exec.Execute(q)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, 10, res.Rows[0]["exclusions"])
}

func TestComparison(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	exec := analytics.NewExecutor(db, testsupport.GetLogger(),
		analytics.WithSummaryTables(false))

	// current period: 3 US, 1 DE; previous period: 1 US only
	for i := 0; i < 3; i++ {
		at := "2024-03-10 10:00:00"
		v := testsupport.CreateVisitor(t, db, fmt.Sprintf("cur-us-%d", i), at, testsupport.VisitorSpec{Country: "US"})
		testsupport.CreateSession(t, db, v.ID, at, at, 0, 1, 0)
	}
	vDE := testsupport.CreateVisitor(t, db, "cur-de", "2024-03-11 10:00:00", testsupport.VisitorSpec{Country: "DE"})
	testsupport.CreateSession(t, db, vDE.ID, "2024-03-11 10:00:00", "2024-03-11 10:00:00", 0, 1, 0)

	vPrev := testsupport.CreateVisitor(t, db, "prev-us", "2024-02-20 10:00:00", testsupport.VisitorSpec{Country: "US"})
	testsupport.CreateSession(t, db, vPrev.ID, "2024-02-20 10:00:00", "2024-02-20 10:00:00", 0, 1, 0)

	t.Run("keyed dimensions match by value", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			GroupBy("country").
			DateRange("2024-03-01 00:00:00", "2024-03-31 23:59:59").
			Compare(true))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		res, err = exec.WithComparison(q, res)
		require.NoError(t, err)
		require.Len(t, res.Rows, 2)

		us := res.Rows[0]
		require.Equal(t, "US", us["country"])
		prev, ok := us["previous"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 1, prev["visitors"])

		de := res.Rows[1]
		_, hasPrev := de["previous"]
		assert.False(t, hasPrev, "unmatched rows carry no previous block")
	})

	t.Run("ungrouped pairs the single rows", func(t *testing.T) {
		q := mustQuery(t, analytics.NewBuilder().
			Sources("visitors").
			DateRange("2024-03-01 00:00:00", "2024-03-31 23:59:59").
			Compare(true).
			Format(analytics.FormatFlat))

		res, err := exec.Execute(q)
		require.NoError(t, err)
		res, err = exec.WithComparison(q, res)
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		assert.EqualValues(t, 4, res.Rows[0]["visitors"])
		prev := res.Rows[0]["previous"].(map[string]any)
		assert.EqualValues(t, 1, prev["visitors"])
	})

	t.Run("explicit previous range wins", func(t *testing.T) {
		spec := analytics.QuerySpec{
			Sources:          []string{"visitors"},
			DateFrom:         "2024-03-01 00:00:00",
			DateTo:           "2024-03-31 23:59:59",
			PreviousDateFrom: "2020-01-01 00:00:00",
			PreviousDateTo:   "2020-01-31 23:59:59",
			Compare:          true,
			Format:           "flat",
		}
		q, err := analytics.NewQuery(spec)
		require.NoError(t, err)

		res, err := exec.Execute(q)
		require.NoError(t, err)
		res, err = exec.WithComparison(q, res)
		require.NoError(t, err)
		prev := res.Rows[0]["previous"].(map[string]any)
		assert.EqualValues(t, 0, prev["visitors"], "2020 had no traffic")
	})
}
