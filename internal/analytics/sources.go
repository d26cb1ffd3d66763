package analytics

// SourceDefinition describes a named metric: the aggregate SQL expression it
// contributes to the SELECT list, the joins it needs over the session spine,
// and whether the pre-aggregated summary tables can serve it.
type SourceDefinition interface {
	Name() string
	ValueType() ValueType
	// Expression is the raw-table aggregate over the session spine.
	Expression() string
	// SummaryExpression aggregates the summary-table columns, "" when the
	// source is not summary-capable.
	SummaryExpression() string
	// Joins lists join names required beyond the primary table.
	Joins() []string
	// Table is the primary fact table the source aggregates.
	Table() string
	// DateColumn overrides the primary table's default date column, "" for
	// the default.
	DateColumn() string
	SummaryCapable() bool
}

type sourceDef struct {
	name        string
	valueType   ValueType
	expr        string
	summaryExpr string
	joins       []string
	table       string
	dateColumn  string
}

func (s *sourceDef) Name() string              { return s.name }
func (s *sourceDef) ValueType() ValueType      { return s.valueType }
func (s *sourceDef) Expression() string        { return s.expr }
func (s *sourceDef) SummaryExpression() string { return s.summaryExpr }
func (s *sourceDef) Joins() []string           { return s.joins }
func (s *sourceDef) Table() string             { return s.table }
func (s *sourceDef) DateColumn() string        { return s.dateColumn }
func (s *sourceDef) SummaryCapable() bool      { return s.summaryExpr != "" }

// SourceRegistry is the static catalog of metric definitions, populated once
// at startup by explicit registration.
type SourceRegistry struct {
	defs  map[string]SourceDefinition
	names []string
}

// Get looks up a source by name.
func (r *SourceRegistry) Get(name string) (SourceDefinition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names returns every registered source name in registration order.
func (r *SourceRegistry) Names() []string {
	return r.names
}

func (r *SourceRegistry) register(def SourceDefinition) {
	r.defs[def.Name()] = def
	r.names = append(r.names, def.Name())
}

// NewSourceRegistry builds the default metric catalog.
//
// All session-spine aggregates use COUNT(DISTINCT ...) so that fan-out from
// the views/events joins cannot inflate counts. Derived ratios are
// NULLIF-guarded against empty periods.
func NewSourceRegistry() *SourceRegistry {
	r := &SourceRegistry{defs: map[string]SourceDefinition{}}

	r.register(&sourceDef{
		name:        "visitors",
		valueType:   TypeInteger,
		expr:        "COUNT(DISTINCT sessions.visitor_id)",
		summaryExpr: "SUM(visitors)",
		table:       "sessions",
	})
	r.register(&sourceDef{
		name:        "sessions",
		valueType:   TypeInteger,
		expr:        "COUNT(DISTINCT sessions.id)",
		summaryExpr: "SUM(sessions)",
		table:       "sessions",
	})
	r.register(&sourceDef{
		name:        "views",
		valueType:   TypeInteger,
		expr:        "COUNT(DISTINCT views.id)",
		summaryExpr: "SUM(views)",
		joins:       []string{joinViews},
		table:       "sessions",
	})
	r.register(&sourceDef{
		name:        "bounces",
		valueType:   TypeInteger,
		expr:        "COUNT(DISTINCT CASE WHEN sessions.is_bounce = 1 THEN sessions.id END)",
		summaryExpr: "SUM(bounces)",
		table:       "sessions",
	})
	r.register(&sourceDef{
		name:        "bounce_rate",
		valueType:   TypeFloat,
		expr:        "ROUND(COUNT(DISTINCT CASE WHEN sessions.is_bounce = 1 THEN sessions.id END) * 100.0 / NULLIF(COUNT(DISTINCT sessions.id), 0), 2)",
		summaryExpr: "ROUND(SUM(bounces) * 100.0 / NULLIF(SUM(sessions), 0), 2)",
		table:       "sessions",
	})
	r.register(&sourceDef{
		name:        "avg_session_duration",
		valueType:   TypeFloat,
		expr:        "ROUND(AVG(sessions.duration), 2)",
		summaryExpr: "ROUND(SUM(total_duration) * 1.0 / NULLIF(SUM(sessions), 0), 2)",
		table:       "sessions",
	})
	r.register(&sourceDef{
		name:        "pages_per_session",
		valueType:   TypeFloat,
		expr:        "ROUND(COUNT(DISTINCT views.id) * 1.0 / NULLIF(COUNT(DISTINCT sessions.id), 0), 2)",
		summaryExpr: "ROUND(SUM(views) * 1.0 / NULLIF(SUM(sessions), 0), 2)",
		joins:       []string{joinViews},
		table:       "sessions",
	})
	r.register(&sourceDef{
		name:       "online_visitors",
		valueType:  TypeInteger,
		expr:       "COUNT(DISTINCT sessions.visitor_id)",
		table:      "sessions",
		dateColumn: "sessions.ended_at",
	})
	r.register(&sourceDef{
		name:      "events",
		valueType: TypeInteger,
		expr:      "COUNT(DISTINCT events.id)",
		joins:     []string{joinEvents},
		table:     "sessions",
	})
	r.register(&sourceDef{
		name:      "exclusions",
		valueType: TypeInteger,
		expr:      "COALESCE(SUM(exclusions.count), 0)",
		table:     "exclusions",
	})

	return r
}
