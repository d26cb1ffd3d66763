package analytics

import (
	"fmt"
	"sort"
	"strings"

	"trafficlens/internal/timeframe"
)

// components are the additive counters kept per summary row. Every
// summary-capable metric derives from these five, which is what lets the
// hybrid path merge pre-aggregated days with today's raw traffic.
type components struct {
	visitors      int64
	views         int64
	sessions      int64
	bounces       int64
	totalDuration int64
}

func (c *components) add(o components) {
	c.visitors += o.visitors
	c.views += o.views
	c.sessions += o.sessions
	c.bounces += o.bounces
	c.totalDuration += o.totalDuration
}

func componentsFromRow(row Row) components {
	return components{
		visitors:      toInt64(row["visitors"]),
		views:         toInt64(row["views"]),
		sessions:      toInt64(row["sessions"]),
		bounces:       toInt64(row["bounces"]),
		totalDuration: toInt64(row["total_duration"]),
	}
}

// deriveMetric computes a summary-capable metric from component sums.
func deriveMetric(name string, c components) any {
	switch name {
	case "visitors":
		return c.visitors
	case "views":
		return c.views
	case "sessions":
		return c.sessions
	case "bounces":
		return c.bounces
	case "bounce_rate":
		if c.sessions == 0 {
			return 0.0
		}
		return round2(float64(c.bounces) * 100.0 / float64(c.sessions))
	case "avg_session_duration":
		if c.sessions == 0 {
			return 0.0
		}
		return round2(float64(c.totalDuration) / float64(c.sessions))
	case "pages_per_session":
		if c.sessions == 0 {
			return 0.0
		}
		return round2(float64(c.views) / float64(c.sessions))
	}
	return int64(0)
}

const componentSelect = "SUM(visitors) AS visitors, SUM(views) AS views, " +
	"SUM(sessions) AS sessions, SUM(bounces) AS bounces, SUM(total_duration) AS total_duration"

// executeSummary serves the query entirely from the pre-aggregated tables.
// An empty summary range falls back to the raw tables, so a site that has
// never run the summarizer still answers correctly.
func (e *Executor) executeSummary(q Query) (Result, error) {
	if len(q.GroupBy) == 1 && q.GroupBy[0] == "page" {
		return e.executePageSummary(q)
	}
	if len(q.GroupBy) == 1 {
		return e.executeTimeSummary(q)
	}
	return e.executeTotalSummary(q)
}

func (e *Executor) executeTotalSummary(q Query) (Result, error) {
	query := "SELECT " + componentSelect + " FROM summary_totals WHERE date BETWEEN ? AND ?"
	rows, err := e.scan(query, []any{timeframe.DateOf(q.DateFrom), timeframe.DateOf(q.DateTo)})
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 || rows[0]["sessions"] == nil {
		// no summary rows in range
		return e.executeRaw(q)
	}

	c := componentsFromRow(rows[0])
	out := Row{}
	for _, name := range q.Sources {
		out[name] = deriveMetric(name, c)
	}
	return Result{Rows: []Row{out}, Total: 1}, nil
}

func (e *Executor) executeTimeSummary(q Query) (Result, error) {
	grp, ok := e.groups.Get(q.GroupBy[0])
	if !ok {
		return Result{}, errInvalidGroupBy(q.GroupBy[0])
	}

	rows, total, err := e.summaryBuckets(q, grp)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return e.executeRaw(q)
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		derived := Row{grp.KeyAlias(): toString(row[grp.KeyAlias()])}
		c := componentsFromRow(row)
		for _, name := range q.Sources {
			derived[name] = deriveMetric(name, c)
		}
		out = append(out, derived)
	}
	normalizeTimeRows(out, []GroupByDefinition{grp})

	out = paginateRows(out, q)
	return Result{Rows: out, Total: total}, nil
}

// summaryBuckets returns per-bucket component sums over summary_totals,
// chronologically ordered and unpaginated so hybrid merging can adjust the
// final bucket before the page is cut.
func (e *Executor) summaryBuckets(q Query, grp GroupByDefinition) ([]Row, int64, error) {
	bucketExpr := timeframe.SQLBucketExpr("summary_totals.date", grp.Bucket())
	query := fmt.Sprintf(
		"SELECT %s AS %s, %s FROM summary_totals WHERE date BETWEEN ? AND ? GROUP BY %s ORDER BY %s ASC",
		bucketExpr, grp.KeyAlias(), componentSelect, bucketExpr, grp.KeyAlias())

	rows, err := e.scan(query, []any{timeframe.DateOf(q.DateFrom), timeframe.DateOf(q.DateTo)})
	if err != nil {
		return nil, 0, err
	}
	return rows, int64(len(rows)), nil
}

func (e *Executor) executePageSummary(q Query) (Result, error) {
	srcs, err := e.resolveSources(q.Sources)
	if err != nil {
		return Result{}, err
	}

	selects := make([]string, 0, len(srcs)+1)
	selects = append(selects, "summaries.resource_id AS page_id")
	for _, s := range srcs {
		selects = append(selects, s.SummaryExpression()+" AS "+s.Name())
	}

	orderBy := srcs[0].Name()
	for _, s := range srcs {
		if s.Name() == q.OrderBy {
			orderBy = s.Name()
		}
	}

	query := fmt.Sprintf(
		"SELECT %s FROM summaries WHERE date BETWEEN ? AND ? GROUP BY summaries.resource_id ORDER BY %s %s",
		strings.Join(selects, ", "), orderBy, q.Order)
	if q.PerPage > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", q.PerPage, q.Offset())
	}
	params := []any{timeframe.DateOf(q.DateFrom), timeframe.DateOf(q.DateTo)}

	rows, err := e.scan(query, params)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return e.executeRaw(q)
	}

	total := int64(len(rows))
	if q.NeedsCount {
		var counted struct{ Total int64 }
		countQuery := "SELECT COUNT(DISTINCT resource_id) AS total FROM summaries WHERE date BETWEEN ? AND ?"
		if err := e.db.Raw(countQuery, params...).Scan(&counted).Error; err != nil {
			return Result{}, fmt.Errorf("error executing count query: %w", err)
		}
		total = counted.Total
	}

	if err := e.resolvePageRows(rows); err != nil {
		return Result{}, err
	}
	return Result{Rows: rows, Total: total}, nil
}

// resolvePageRows attaches page_uri and page_title to summary page rows,
// which carry only resource ids.
func (e *Executor) resolvePageRows(rows []Row) error {
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, toInt64(row["page_id"]))
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(
		"SELECT resources.id AS id, resource_uris.uri AS uri, resources.title AS title "+
			"FROM resources INNER JOIN resource_uris ON resource_uris.resource_id = resources.id "+
			"WHERE resources.id IN (%s) GROUP BY resources.id", placeholders)

	found, err := e.scan(query, ids)
	if err != nil {
		return err
	}
	uris := make(map[int64]string, len(found))
	titles := make(map[int64]string, len(found))
	for _, f := range found {
		uris[toInt64(f["id"])] = toString(f["uri"])
		titles[toInt64(f["id"])] = toString(f["title"])
	}
	for _, row := range rows {
		id := toInt64(row["page_id"])
		row["page_uri"] = uris[id]
		if title := titles[id]; title != "" {
			row["page_title"] = title
		} else {
			row["page_title"] = uris[id]
		}
	}
	return nil
}

// executeHybrid serves closed days from summary_totals and today from the
// raw tables, merging at the component level so ratio metrics stay exact
// across the boundary.
func (e *Executor) executeHybrid(q Query) (Result, error) {
	today := e.now().Format(timeframe.DateLayout)
	if timeframe.DateOf(q.DateFrom) >= today {
		// the whole range is today, nothing to split
		return e.executeRaw(q)
	}

	summaryTo := previousDay(today) + " 23:59:59"
	todayFrom := today + " 00:00:00"

	todayComponents, err := e.rawComponents(todayFrom, q.DateTo)
	if err != nil {
		return Result{}, err
	}

	if len(q.GroupBy) == 0 {
		rows, err := e.scan(
			"SELECT "+componentSelect+" FROM summary_totals WHERE date BETWEEN ? AND ?",
			[]any{timeframe.DateOf(q.DateFrom), timeframe.DateOf(summaryTo)})
		if err != nil {
			return Result{}, err
		}
		if len(rows) == 0 || rows[0]["sessions"] == nil {
			return e.executeRaw(q)
		}

		c := componentsFromRow(rows[0])
		c.add(todayComponents)
		out := Row{}
		for _, name := range q.Sources {
			out[name] = deriveMetric(name, c)
		}
		return Result{Rows: []Row{out}, Total: 1}, nil
	}

	grp, ok := e.groups.Get(q.GroupBy[0])
	if !ok {
		return Result{}, errInvalidGroupBy(q.GroupBy[0])
	}

	summaryQuery := q.WithDateRange(q.DateFrom, summaryTo)
	buckets, _, err := e.summaryBuckets(summaryQuery, grp)
	if err != nil {
		return Result{}, err
	}
	if len(buckets) == 0 {
		return e.executeRaw(q)
	}

	// the sqlite month bucket is YYYY-MM, canonicalize to first-of-month so
	// keys line up with BucketKey
	if grp.Bucket() == timeframe.BucketMonth {
		for _, row := range buckets {
			row[grp.KeyAlias()] = timeframe.MonthStart(toString(row[grp.KeyAlias()]))
		}
	}

	// today may extend the last bucket or open a new one
	todayKey, err := timeframe.BucketKey(today, grp.Bucket())
	if err != nil {
		return Result{}, err
	}
	merged := false
	for _, row := range buckets {
		if toString(row[grp.KeyAlias()]) == todayKey {
			c := componentsFromRow(row)
			c.add(todayComponents)
			row["visitors"] = c.visitors
			row["views"] = c.views
			row["sessions"] = c.sessions
			row["bounces"] = c.bounces
			row["total_duration"] = c.totalDuration
			merged = true
		}
	}
	if !merged {
		todayRow := Row{
			grp.KeyAlias():   todayKey,
			"visitors":       todayComponents.visitors,
			"views":          todayComponents.views,
			"sessions":       todayComponents.sessions,
			"bounces":        todayComponents.bounces,
			"total_duration": todayComponents.totalDuration,
		}
		buckets = append(buckets, todayRow)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return toString(buckets[i][grp.KeyAlias()]) < toString(buckets[j][grp.KeyAlias()])
	})

	out := make([]Row, 0, len(buckets))
	for _, row := range buckets {
		derived := Row{grp.KeyAlias(): toString(row[grp.KeyAlias()])}
		c := componentsFromRow(row)
		for _, name := range q.Sources {
			derived[name] = deriveMetric(name, c)
		}
		out = append(out, derived)
	}
	normalizeTimeRows(out, []GroupByDefinition{grp})

	total := int64(len(out))
	out = paginateRows(out, q)
	return Result{Rows: out, Total: total}, nil
}

// rawComponents aggregates today's component counters from the fact tables.
// Views run as a separate query so the session/view join cannot inflate the
// session-level sums.
func (e *Executor) rawComponents(from, to string) (components, error) {
	sessionRows, err := e.scan(
		"SELECT COUNT(DISTINCT sessions.visitor_id) AS visitors, COUNT(sessions.id) AS sessions, "+
			"COALESCE(SUM(sessions.is_bounce), 0) AS bounces, COALESCE(SUM(sessions.duration), 0) AS total_duration "+
			"FROM sessions WHERE sessions.started_at BETWEEN ? AND ?",
		[]any{from, to})
	if err != nil {
		return components{}, err
	}
	viewRows, err := e.scan(
		"SELECT COUNT(views.id) AS views FROM views WHERE views.viewed_at BETWEEN ? AND ?",
		[]any{from, to})
	if err != nil {
		return components{}, err
	}

	c := components{}
	if len(sessionRows) > 0 {
		c = componentsFromRow(sessionRows[0])
	}
	if len(viewRows) > 0 {
		c.views = toInt64(viewRows[0]["views"])
	}
	return c, nil
}

func previousDay(day string) string {
	t, err := timeframe.Parse(day + " 00:00:00")
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, -1).Format(timeframe.DateLayout)
}

// paginateRows cuts an in-memory page out of a fully materialized result.
func paginateRows(rows []Row, q Query) []Row {
	if q.PerPage <= 0 {
		return rows
	}
	start := q.Offset()
	if start >= len(rows) {
		return []Row{}
	}
	end := start + q.PerPage
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
