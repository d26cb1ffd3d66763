package analytics

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"trafficlens/internal/timeframe"
)

// Join names shared by sources, group-bys and filters.
const (
	joinVisitors     = "visitors"
	joinViews        = "views"
	joinEvents       = "events"
	joinResourceURIs = "resource_uris"
	joinResources    = "resources"
)

// joinOrder fixes the emission order so dependent joins always follow the
// tables they reference.
var joinOrder = []string{joinVisitors, joinViews, joinResourceURIs, joinResources, joinEvents}

var joinClauses = map[string]string{
	joinVisitors:     "INNER JOIN visitors ON visitors.id = sessions.visitor_id",
	joinViews:        "LEFT JOIN views ON views.session_id = sessions.id",
	joinResourceURIs: "INNER JOIN resource_uris ON resource_uris.id = views.resource_uri_id",
	joinEvents:       "LEFT JOIN events ON events.session_id = sessions.id",
	joinResources:    "INNER JOIN resources ON resources.id = resource_uris.resource_id",
}

// Default date column per primary fact table.
var tableDateColumns = map[string]string{
	"sessions":   "sessions.started_at",
	"views":      "views.viewed_at",
	"visitors":   "visitors.created_at",
	"events":     "events.date",
	"exclusions": "exclusions.date",
}

// allowedDateColumns whitelists explicit date-column overrides. Dynamic
// identifiers only ever come from this table or the registries.
var allowedDateColumns = map[string]bool{
	"sessions.started_at": true,
	"sessions.ended_at":   true,
	"views.viewed_at":     true,
	"visitors.created_at": true,
}

// Result is the executor output: the page of rows plus the total matching
// row count (equal to len(Rows) when no count query ran).
type Result struct {
	Rows  []Row
	Total int64
}

// strategy is the three-way execution plan choice, made once per query.
type strategy int

const (
	strategyRaw strategy = iota
	strategySummary
	strategyHybrid
)

// Executor plans and runs queries against the fact or summary tables.
type Executor struct {
	db             *gorm.DB
	logger         *slog.Logger
	sources        *SourceRegistry
	groups         *GroupByRegistry
	filters        *FilterRegistry
	summaryEnabled bool
	now            func() time.Time
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithSummaryTables toggles summary-table optimization.
func WithSummaryTables(enabled bool) ExecutorOption {
	return func(e *Executor) { e.summaryEnabled = enabled }
}

// WithClock overrides the time source, used by tests to pin "today".
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// NewExecutor creates an executor over the default registries.
func NewExecutor(db *gorm.DB, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		db:             db,
		logger:         logger,
		sources:        NewSourceRegistry(),
		groups:         NewGroupByRegistry(),
		filters:        NewFilterRegistry(),
		summaryEnabled: true,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sources exposes the metric registry for request validation.
func (e *Executor) Sources() *SourceRegistry { return e.sources }

// Groups exposes the dimension registry for request validation.
func (e *Executor) Groups() *GroupByRegistry { return e.groups }

// Filters exposes the filter registry.
func (e *Executor) Filters() *FilterRegistry { return e.filters }

// Execute runs the query, dispatching between the raw fact tables, the
// pre-aggregated summary tables, and the hybrid split that keeps today's
// in-flight data fresh.
func (e *Executor) Execute(q Query) (Result, error) {
	switch e.selectStrategy(q) {
	case strategySummary:
		return e.executeSummary(q)
	case strategyHybrid:
		return e.executeHybrid(q)
	default:
		return e.executeRaw(q)
	}
}

func (e *Executor) selectStrategy(q Query) strategy {
	if !e.canUseSummaryTable(q) {
		return strategyRaw
	}
	if timeframe.EndsOn(q.DateTo, e.now()) {
		if len(q.GroupBy) == 1 && q.GroupBy[0] == "page" {
			// no per-resource merge across the summary/raw boundary
			return strategyRaw
		}
		return strategyHybrid
	}
	return strategySummary
}

// canUseSummaryTable reports whether the summary tables can serve the query:
// every source must be summary-capable, grouping must be absent, a single
// time dimension, or page, and no filters may be present (summaries carry no
// per-dimension breakdown to filter on).
func (e *Executor) canUseSummaryTable(q Query) bool {
	if !e.summaryEnabled || len(q.Filters) > 0 || q.DateColumn != "" {
		return false
	}
	for _, name := range q.Sources {
		def, ok := e.sources.Get(name)
		if !ok || !def.SummaryCapable() {
			return false
		}
	}
	switch len(q.GroupBy) {
	case 0:
		return true
	case 1:
		switch q.GroupBy[0] {
		case "date", "week", "month", "page":
			return true
		}
	}
	return false
}

// rawPlan is one fully-built raw-table SQL statement pair.
type rawPlan struct {
	query       string
	params      []any
	countQuery  string
	countParams []any
	groups      []GroupByDefinition
}

func (e *Executor) resolveSources(names []string) ([]SourceDefinition, error) {
	defs := make([]SourceDefinition, 0, len(names))
	for _, name := range names {
		def, ok := e.sources.Get(name)
		if !ok {
			return nil, errInvalidSource(name)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (e *Executor) resolveGroups(names []string) ([]GroupByDefinition, error) {
	defs := make([]GroupByDefinition, 0, len(names))
	for _, name := range names {
		def, ok := e.groups.Get(name)
		if !ok {
			return nil, errInvalidGroupBy(name)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func primaryTable(srcs []SourceDefinition) string {
	for _, src := range srcs {
		if src.Table() != "sessions" {
			return src.Table()
		}
	}
	return "sessions"
}

func (e *Executor) resolveDateColumn(q Query, srcs []SourceDefinition, grps []GroupByDefinition, table string) string {
	if q.DateColumn != "" && allowedDateColumns[q.DateColumn] {
		return q.DateColumn
	}
	for _, g := range grps {
		if g.DateColumn() != "" {
			return g.DateColumn()
		}
	}
	for _, s := range srcs {
		if s.DateColumn() != "" {
			return s.DateColumn()
		}
	}
	return tableDateColumns[table]
}

func (e *Executor) buildRawPlan(q Query) (rawPlan, error) {
	srcs, err := e.resolveSources(q.Sources)
	if err != nil {
		return rawPlan{}, err
	}
	grps, err := e.resolveGroups(q.GroupBy)
	if err != nil {
		return rawPlan{}, err
	}
	clause, err := BuildFilters(e.filters, q.Filters)
	if err != nil {
		return rawPlan{}, err
	}

	table := primaryTable(srcs)
	dateColumn := e.resolveDateColumn(q, srcs, grps, table)
	ctx := GroupByContext{DateColumn: dateColumn, Columns: q.Columns}

	// SELECT: dimension columns first, then metric aggregates
	selects := make([]string, 0, len(grps)+len(srcs))
	aliases := make([]string, 0, len(grps))
	groupExprs := make([]string, 0, len(grps))
	wheres := make([]string, 0, 4)
	for _, g := range grps {
		for _, col := range g.Select(ctx) {
			selects = append(selects, col.Expr+" AS "+col.Alias)
			aliases = append(aliases, col.Alias)
		}
		if expr := g.GroupExpr(ctx); expr != "" {
			groupExprs = append(groupExprs, expr)
		}
		if g.Where() != "" {
			wheres = append(wheres, g.Where())
		}
	}
	for _, s := range srcs {
		selects = append(selects, s.Expression()+" AS "+s.Name())
	}

	joins := e.collectJoins(table, srcs, grps, clause)

	var sb strings.Builder
	params := make([]any, 0, len(clause.Params)+2)
	sb.WriteString("SELECT " + strings.Join(selects, ", "))
	sb.WriteString(" FROM " + table)
	for _, join := range joins {
		sb.WriteString(" " + join)
	}
	sb.WriteString(fmt.Sprintf(" WHERE %s BETWEEN ? AND ?", dateColumn))
	params = append(params, q.DateFrom, q.DateTo)
	for _, w := range wheres {
		sb.WriteString(" AND " + w)
	}
	for _, cond := range clause.Conditions {
		sb.WriteString(" AND " + cond)
	}
	params = append(params, clause.Params...)

	// count query shares FROM/WHERE and wraps the grouped projection
	var countQuery string
	countParams := append([]any(nil), params...)
	fromWhere := sb.String()[strings.Index(sb.String(), " FROM "):]
	if len(groupExprs) > 0 {
		countQuery = fmt.Sprintf("SELECT COUNT(*) AS total FROM (SELECT %s%s GROUP BY %s)",
			strings.Join(groupExprs, ", "), fromWhere, strings.Join(groupExprs, ", "))
		sb.WriteString(" GROUP BY " + strings.Join(groupExprs, ", "))
	} else {
		countQuery = "SELECT COUNT(*) AS total" + fromWhere
	}

	sb.WriteString(" ORDER BY " + e.orderClause(q, srcs, grps, aliases))

	if q.PerPage > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", q.PerPage, q.Offset()))
	}

	return rawPlan{
		query:       sb.String(),
		params:      params,
		countQuery:  countQuery,
		countParams: countParams,
		groups:      grps,
	}, nil
}

// orderClause validates order_by against the requested sources and the
// active dimension aliases, silently falling back to the first source. Time
// series with no explicit ordering sort chronologically.
func (e *Executor) orderClause(q Query, srcs []SourceDefinition, grps []GroupByDefinition, aliases []string) string {
	if q.OrderBy == "" {
		if len(grps) == 1 && grps[0].TimeSeries() {
			return grps[0].KeyAlias() + " ASC"
		}
		return srcs[0].Name() + " " + q.Order
	}

	for _, s := range srcs {
		if s.Name() == q.OrderBy {
			return s.Name() + " " + q.Order
		}
	}
	for _, alias := range aliases {
		if alias == q.OrderBy {
			return alias + " " + q.Order
		}
	}
	return srcs[0].Name() + " " + q.Order
}

func (e *Executor) collectJoins(table string, srcs []SourceDefinition, grps []GroupByDefinition, clause FilterClause) []string {
	if table != "sessions" {
		// non-session primaries (exclusions) are standalone aggregates
		return nil
	}

	needed := map[string]bool{}
	for _, s := range srcs {
		for _, j := range s.Joins() {
			needed[j] = true
		}
	}
	for _, g := range grps {
		for _, j := range g.Joins() {
			needed[j] = true
		}
	}
	for _, j := range clause.Joins {
		needed[j] = true
	}
	for _, req := range clause.Requirements {
		needed[req] = true
	}
	// the resources chain rides on views
	if needed[joinResourceURIs] || needed[joinResources] {
		needed[joinViews] = true
	}
	if needed[joinResources] {
		needed[joinResourceURIs] = true
	}

	joins := make([]string, 0, len(needed))
	for _, name := range joinOrder {
		if needed[name] {
			joins = append(joins, joinClauses[name])
		}
	}
	return joins
}

func (e *Executor) executeRaw(q Query) (Result, error) {
	plan, err := e.buildRawPlan(q)
	if err != nil {
		return Result{}, err
	}

	rows, err := e.scan(plan.query, plan.params)
	if err != nil {
		return Result{}, err
	}

	total := int64(len(rows))
	if q.NeedsCount {
		var counted struct{ Total int64 }
		if err := e.db.Raw(plan.countQuery, plan.countParams...).Scan(&counted).Error; err != nil {
			return Result{}, fmt.Errorf("error executing count query: %w", err)
		}
		total = counted.Total
	}

	for _, g := range plan.groups {
		if err := g.PostProcess(e.db, rows); err != nil {
			return Result{}, err
		}
	}
	normalizeTimeRows(rows, plan.groups)

	return Result{Rows: rows, Total: total}, nil
}

// ExecuteTotals runs a single aggregate row over the same sources, filters,
// and date range, with no grouping and no pagination. Used when pagination
// means the fetched page cannot be summed locally.
func (e *Executor) ExecuteTotals(q Query) (Row, error) {
	totalsQuery := q
	totalsQuery.GroupBy = nil
	totalsQuery.PerPage = 0
	totalsQuery.Page = 1
	totalsQuery.OrderBy = ""
	totalsQuery.NeedsCount = false

	if e.canUseSummaryTable(totalsQuery) && !timeframe.EndsOn(totalsQuery.DateTo, e.now()) {
		res, err := e.executeSummary(totalsQuery)
		if err != nil {
			return nil, err
		}
		if len(res.Rows) > 0 {
			return res.Rows[0], nil
		}
		return Row{}, nil
	}

	res, err := e.executeRaw(totalsQuery)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) > 0 {
		return res.Rows[0], nil
	}
	return Row{}, nil
}

func (e *Executor) scan(query string, params []any) ([]Row, error) {
	var raw []map[string]any
	if err := e.db.Raw(query, params...).Scan(&raw).Error; err != nil {
		return nil, fmt.Errorf("error executing analytics query: %w", err)
	}
	rows := make([]Row, len(raw))
	for i, m := range raw {
		// gorm fills map destinations with *interface{} cells
		for k, v := range m {
			if p, ok := v.(*any); ok {
				if p == nil {
					m[k] = nil
				} else {
					m[k] = *p
				}
			}
		}
		rows[i] = Row(m)
	}
	return rows, nil
}

// normalizeTimeRows gives week/month rows a canonical date column so every
// downstream consumer sees one shape regardless of bucket or table path.
func normalizeTimeRows(rows []Row, grps []GroupByDefinition) {
	for _, g := range grps {
		if !g.TimeSeries() {
			continue
		}
		switch g.Bucket() {
		case timeframe.BucketWeek:
			for _, row := range rows {
				row["date"] = toString(row["week_start"])
			}
		case timeframe.BucketMonth:
			for _, row := range rows {
				row["date"] = timeframe.MonthStart(toString(row["month"]))
			}
		}
	}
}
