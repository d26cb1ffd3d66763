package analytics

import (
	"fmt"
	"log/slog"

	"trafficlens/internal/timeframe"
)

// Request is the inbound query shape. Filters accepts either a key→value map
// or a list of {key, operator, value} triples.
type Request struct {
	ID               string   `json:"id,omitempty"`
	Sources          []string `json:"sources"`
	GroupBy          []string `json:"group_by"`
	Filters          any      `json:"filters"`
	DateFrom         string   `json:"date_from"`
	DateTo           string   `json:"date_to"`
	PreviousDateFrom string   `json:"previous_date_from"`
	PreviousDateTo   string   `json:"previous_date_to"`
	OrderBy          string   `json:"order_by"`
	Order            string   `json:"order"`
	Page             int      `json:"page"`
	PerPage          *int     `json:"per_page"`
	Compare          *bool    `json:"compare"`
	DateColumn       string   `json:"date_column"`
	Format           string   `json:"format"`
	Columns          []string `json:"columns"`
	ShowTotals       *bool    `json:"show_totals"`
	AggregateOthers  bool     `json:"aggregate_others"`
	Context          string   `json:"context"`
}

// Response is a format-dependent envelope ready for JSON serialization.
type Response map[string]any

// Preferences are per-context saved view settings.
type Preferences struct {
	Columns        []string `json:"columns,omitempty"`
	VisibleWidgets []string `json:"visible_widgets,omitempty"`
}

// CacheManager stores computed responses keyed by normalized query.
type CacheManager interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	ClearAll()
	SetEnabled(enabled bool)
}

// PreferencesManager loads saved view preferences for an opaque context key.
// A missing context returns (nil, nil).
type PreferencesManager interface {
	Get(contextKey string) (*Preferences, error)
}

// operatorAliases maps verbose request operators onto the compact filter
// operators.
var operatorAliases = map[string]string{
	"equal":                 "is",
	"not_equal":             "is_not",
	"greater_than":          "gt",
	"greater_than_or_equal": "gte",
	"less_than":             "lt",
	"less_than_or_equal":    "lte",
}

// Handler is the top-level query façade: it validates and normalizes
// requests, runs them through the executor, applies comparison and
// post-processing, and shapes the response.
type Handler struct {
	executor  *Executor
	cache     CacheManager
	prefs     PreferencesManager
	logger    *slog.Logger
	cacheRead bool
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithCache attaches a response cache. Reads are served from it only when
// readThrough is set; writes always happen so a later toggle finds the cache
// warm.
func WithCache(cache CacheManager, readThrough bool) HandlerOption {
	return func(h *Handler) {
		h.cache = cache
		h.cacheRead = readThrough
	}
}

// WithPreferences attaches the per-context preferences store.
func WithPreferences(prefs PreferencesManager) HandlerOption {
	return func(h *Handler) { h.prefs = prefs }
}

// NewHandler creates the query handler.
func NewHandler(executor *Executor, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{executor: executor, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle validates and executes a single query request.
func (h *Handler) Handle(req Request) (Response, error) {
	q, prefs, err := h.buildQuery(req)
	if err != nil {
		return nil, err
	}

	cacheKey := q.CacheKey()
	if h.cache != nil && h.cacheRead {
		if cached, ok := h.cache.Get(cacheKey); ok {
			if resp, ok := cached.(Response); ok {
				return resp, nil
			}
		}
	}

	resp, err := h.run(q, prefs)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		h.cache.Set(cacheKey, resp)
	}
	return resp, nil
}

func (h *Handler) run(q Query, prefs *Preferences) (Response, error) {
	result, err := h.executor.Execute(q)
	if err != nil {
		return nil, err
	}
	if q.Compare {
		result, err = h.executor.WithComparison(q, result)
		if err != nil {
			return nil, err
		}
	}

	var totals Row
	if q.ShowTotals && q.HasGroupBy() {
		totals, err = h.executor.ExecuteTotals(q)
		if err != nil {
			return nil, err
		}
		if q.Compare {
			totals, err = h.executor.CompareTotals(q, totals)
			if err != nil {
				return nil, err
			}
		}
	}

	rows := result.Rows
	total := result.Total
	if q.AggregateOthers && q.HasGroupBy() {
		rows = h.aggregateOthers(rows, q)
		total = int64(len(rows))
	}

	if len(q.Columns) > 0 {
		rows = projectRows(rows, q.Columns, h.sourceSet(q))
		totals = projectTotals(totals, q.Columns, h.sourceSet(q))
	}

	return h.formatResponse(q, rows, totals, total, prefs), nil
}

// buildQuery validates and normalizes a request into a Query, loading
// context preferences along the way.
func (h *Handler) buildQuery(req Request) (Query, *Preferences, error) {
	if len(req.Sources) == 0 {
		return Query{}, nil, errInvalidSource("")
	}
	for _, name := range req.Sources {
		if _, ok := h.executor.sources.Get(name); !ok {
			return Query{}, nil, errInvalidSource(name)
		}
	}
	groupDefs := make([]GroupByDefinition, 0, len(req.GroupBy))
	for _, name := range req.GroupBy {
		def, ok := h.executor.groups.Get(name)
		if !ok {
			return Query{}, nil, errInvalidGroupBy(name)
		}
		groupDefs = append(groupDefs, def)
	}

	dateFrom, dateTo, err := h.normalizeDates(req.DateFrom, req.DateTo)
	if err != nil {
		return Query{}, nil, err
	}
	prevFrom, prevTo := "", ""
	if req.PreviousDateFrom != "" && req.PreviousDateTo != "" {
		prevFrom, err = normalizeDate(req.PreviousDateFrom, timeframe.NormalizeStart)
		if err != nil {
			return Query{}, nil, err
		}
		prevTo, err = normalizeDate(req.PreviousDateTo, timeframe.NormalizeEnd)
		if err != nil {
			return Query{}, nil, err
		}
	}

	filters, err := normalizeFilters(req.Filters)
	if err != nil {
		return Query{}, nil, err
	}

	var prefs *Preferences
	if req.Context != "" && h.prefs != nil {
		prefs, err = h.prefs.Get(req.Context)
		if err != nil {
			return Query{}, nil, fmt.Errorf("error loading preferences for context %q: %w", req.Context, err)
		}
	}
	columns := req.Columns
	if len(columns) == 0 && prefs != nil {
		columns = prefs.Columns
	}
	if err := h.validateColumns(columns, req.Sources, groupDefs); err != nil {
		return Query{}, nil, err
	}

	perPage := req.PerPage
	if perPage == nil && Format(req.Format) == FormatChart && isTimeSeries(groupDefs) {
		// chart series must not be truncated at the default page size
		full := maxPerPage
		perPage = &full
	}
	originalPerPage := 0
	if req.AggregateOthers {
		if perPage != nil {
			originalPerPage = *perPage
		} else {
			originalPerPage = defaultPerPage
		}
		full := maxPerPage
		perPage = &full
	}

	showTotals := true
	if req.ShowTotals != nil {
		showTotals = *req.ShowTotals
	}
	compare := req.Compare != nil && *req.Compare

	q, err := NewQuery(QuerySpec{
		Sources:          req.Sources,
		GroupBy:          req.GroupBy,
		Filters:          filters,
		DateFrom:         dateFrom,
		DateTo:           dateTo,
		OrderBy:          req.OrderBy,
		Order:            req.Order,
		Page:             req.Page,
		PerPage:          perPage,
		Compare:          compare,
		DateColumn:       req.DateColumn,
		AggregateOthers:  req.AggregateOthers,
		OriginalPerPage:  originalPerPage,
		ShowTotals:       showTotals,
		Format:           req.Format,
		Columns:          columns,
		PreviousDateFrom: prevFrom,
		PreviousDateTo:   prevTo,
	})
	if err != nil {
		return Query{}, nil, err
	}
	return q, prefs, nil
}

func (h *Handler) normalizeDates(from, to string) (string, string, error) {
	now := h.executor.now()
	if from == "" {
		from = now.AddDate(0, 0, -30).Format(timeframe.DateLayout)
	}
	if to == "" {
		to = now.Format(timeframe.DateLayout)
	}
	normFrom, err := normalizeDate(from, timeframe.NormalizeStart)
	if err != nil {
		return "", "", err
	}
	normTo, err := normalizeDate(to, timeframe.NormalizeEnd)
	if err != nil {
		return "", "", err
	}
	if timeframe.DateOf(normFrom) > timeframe.DateOf(normTo) {
		return "", "", errInvalidDateRange(from + ".." + to)
	}
	return normFrom, normTo, nil
}

func normalizeDate(value string, normalize func(string) (string, error)) (string, error) {
	out, err := normalize(value)
	if err != nil {
		return "", errInvalidDateRange(value)
	}
	return out, nil
}

// normalizeFilters accepts both filter shapes and returns the canonical
// key→value map, applying operator aliases to triple-form entries.
func normalizeFilters(raw any) (map[string]any, error) {
	switch f := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return f, nil
	case []any:
		out := make(map[string]any, len(f))
		for _, entry := range f {
			triple, ok := entry.(map[string]any)
			if !ok {
				return nil, errInvalidFilter(fmt.Sprintf("%v", entry))
			}
			key := toString(triple["key"])
			if key == "" {
				continue
			}
			op := toString(triple["operator"])
			if alias, ok := operatorAliases[op]; ok {
				op = alias
			}
			if op == "" || op == "is" {
				out[key] = triple["value"]
			} else {
				out[key] = map[string]any{op: triple["value"]}
			}
		}
		return out, nil
	default:
		return nil, errInvalidFilter(fmt.Sprintf("%v", raw))
	}
}

func isTimeSeries(groups []GroupByDefinition) bool {
	return len(groups) == 1 && groups[0].TimeSeries()
}

// validateColumns checks the projection list against the names a result row
// can actually carry: source names, dimension aliases, and post-processed
// columns declared by each dimension.
func (h *Handler) validateColumns(columns []string, sources []string, groups []GroupByDefinition) error {
	if len(columns) == 0 {
		return nil
	}
	valid := map[string]bool{}
	for _, name := range sources {
		valid[name] = true
	}
	ctx := GroupByContext{Columns: columns}
	for _, g := range groups {
		for _, alias := range g.Aliases(ctx) {
			valid[alias] = true
		}
	}
	for _, col := range columns {
		if !valid[col] {
			return errInvalidColumn(col)
		}
	}
	return nil
}

func (h *Handler) sourceSet(q Query) map[string]bool {
	set := make(map[string]bool, len(q.Sources))
	for _, name := range q.Sources {
		set[name] = true
	}
	return set
}

// aggregateOthers collapses the result tail into a single "Other" row when
// the row count exceeds the caller's requested page size. The first limit-1
// rows pass through verbatim; every source value (and nested previous value)
// of the remaining rows is summed into the synthetic row.
func (h *Handler) aggregateOthers(rows []Row, q Query) []Row {
	limit := q.AggregationLimit()
	if limit <= 0 || len(rows) <= limit {
		return rows
	}

	kept := rows[:limit-1]
	tail := rows[limit-1:]

	other := Row{keyIsOther: true}
	ctx := GroupByContext{Columns: q.Columns}
	for _, g := range q.GroupBy {
		def, ok := h.executor.groups.Get(g)
		if !ok {
			continue
		}
		for _, alias := range def.Aliases(ctx) {
			if _, present := tail[0][alias]; present {
				other[alias] = otherLabel
			}
		}
	}

	prevSums := map[string]any{}
	hasPrevious := false
	for _, row := range tail {
		for _, name := range q.Sources {
			other[name] = sumValues(other[name], row[name])
		}
		if prev, ok := row[keyPrevious].(map[string]any); ok {
			hasPrevious = true
			for _, name := range q.Sources {
				prevSums[name] = sumValues(prevSums[name], prev[name])
			}
		}
	}
	if hasPrevious {
		other[keyPrevious] = prevSums
	}

	out := make([]Row, 0, limit)
	out = append(out, kept...)
	out = append(out, other)
	return out
}

// sumValues adds two numeric cell values, staying integral until a float
// shows up.
func sumValues(a, b any) any {
	if a == nil && b == nil {
		return int64(0)
	}
	if isFloat(a) || isFloat(b) {
		return toFloat64(a) + toFloat64(b)
	}
	return toInt64(a) + toInt64(b)
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}

func projectRows(rows []Row, columns []string, sources map[string]bool) []Row {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, projectRow(row, columns, sources))
	}
	return out
}

// projectRow rebuilds a row with only the requested columns. The nested
// previous map keeps source-type columns only, and the is_other marker
// always survives projection.
func projectRow(row Row, columns []string, sources map[string]bool) Row {
	out := Row{}
	for _, col := range columns {
		if v, ok := row[col]; ok {
			out[col] = v
		}
	}
	if prev, ok := row[keyPrevious].(map[string]any); ok {
		filtered := map[string]any{}
		for _, col := range columns {
			if !sources[col] {
				continue
			}
			if v, ok := prev[col]; ok {
				filtered[col] = v
			}
		}
		out[keyPrevious] = filtered
	}
	if v, ok := row[keyIsOther]; ok {
		out[keyIsOther] = v
	}
	return out
}

func projectTotals(totals Row, columns []string, sources map[string]bool) Row {
	if totals == nil {
		return nil
	}
	out := Row{}
	for _, col := range columns {
		if !sources[col] {
			continue
		}
		if v, ok := totals[col]; ok {
			out[col] = v
		}
	}
	if prev, ok := totals[keyPrevious]; ok {
		out[keyPrevious] = prev
	}
	return out
}
