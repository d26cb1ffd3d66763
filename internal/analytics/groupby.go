package analytics

import (
	"fmt"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"trafficlens/internal/timeframe"
)

// GroupByContext carries the per-query inputs a dimension needs to produce
// its SELECT columns: the resolved date column and the requested output
// columns (some dimensions emit extra columns only when asked for).
type GroupByContext struct {
	DateColumn string
	Columns    []string
}

func (ctx GroupByContext) wantsColumn(name string) bool {
	for _, c := range ctx.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// SelectColumn is one SELECT list entry contributed by a dimension.
type SelectColumn struct {
	Expr  string
	Alias string
}

// GroupByDefinition describes a named dimension: SELECT columns, the GROUP
// BY expression, required joins, an optional static WHERE condition, and a
// post-query hook for resolving raw values (IDs to titles, codes to names).
type GroupByDefinition interface {
	Name() string
	Select(ctx GroupByContext) []SelectColumn
	GroupExpr(ctx GroupByContext) string
	Joins() []string
	Where() string
	// KeyAlias is the column used for comparison matching and for labeling
	// the synthetic aggregate-others row.
	KeyAlias() string
	// Aliases lists every result column the dimension emits, including ones
	// added by PostProcess. Used for order-by and column validation.
	Aliases(ctx GroupByContext) []string
	TimeSeries() bool
	Bucket() timeframe.Bucket
	// DateColumn overrides the query's date column, "" for no override.
	DateColumn() string
	PostProcess(db *gorm.DB, rows []Row) error
}

type groupByDef struct {
	name       string
	selectFn   func(ctx GroupByContext) []SelectColumn
	groupFn    func(ctx GroupByContext) string
	joins      []string
	where      string
	keyAlias   string
	aliasFn    func(ctx GroupByContext) []string
	timeSeries bool
	bucket     timeframe.Bucket
	dateColumn string
	post       func(db *gorm.DB, rows []Row) error
}

func (g *groupByDef) Name() string                           { return g.name }
func (g *groupByDef) Select(ctx GroupByContext) []SelectColumn { return g.selectFn(ctx) }
func (g *groupByDef) GroupExpr(ctx GroupByContext) string    { return g.groupFn(ctx) }
func (g *groupByDef) Joins() []string                        { return g.joins }
func (g *groupByDef) Where() string                          { return g.where }
func (g *groupByDef) KeyAlias() string                       { return g.keyAlias }
func (g *groupByDef) Aliases(ctx GroupByContext) []string    { return g.aliasFn(ctx) }
func (g *groupByDef) TimeSeries() bool                       { return g.timeSeries }
func (g *groupByDef) Bucket() timeframe.Bucket               { return g.bucket }
func (g *groupByDef) DateColumn() string                     { return g.dateColumn }

func (g *groupByDef) PostProcess(db *gorm.DB, rows []Row) error {
	if g.post == nil {
		return nil
	}
	return g.post(db, rows)
}

// GroupByRegistry is the static catalog of dimension definitions.
type GroupByRegistry struct {
	defs  map[string]GroupByDefinition
	names []string
}

// Get looks up a dimension by name.
func (r *GroupByRegistry) Get(name string) (GroupByDefinition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names returns every registered dimension name in registration order.
func (r *GroupByRegistry) Names() []string {
	return r.names
}

func (r *GroupByRegistry) register(def GroupByDefinition) {
	r.defs[def.Name()] = def
	r.names = append(r.names, def.Name())
}

var titleCaser = cases.Title(language.English)

// simpleDim builds a dimension over a single column expression.
func simpleDim(name, expr, alias string, joins []string) *groupByDef {
	return &groupByDef{
		name:     name,
		keyAlias: alias,
		joins:    joins,
		selectFn: func(GroupByContext) []SelectColumn {
			return []SelectColumn{{Expr: expr, Alias: alias}}
		},
		groupFn: func(GroupByContext) string { return expr },
		aliasFn: func(GroupByContext) []string { return []string{alias} },
	}
}

// timeDim builds a time-series dimension over the query's date column.
func timeDim(name string, bucket timeframe.Bucket, alias string) *groupByDef {
	return &groupByDef{
		name:       name,
		keyAlias:   alias,
		timeSeries: true,
		bucket:     bucket,
		selectFn: func(ctx GroupByContext) []SelectColumn {
			return []SelectColumn{{Expr: timeframe.SQLBucketExpr(ctx.DateColumn, bucket), Alias: alias}}
		},
		groupFn: func(ctx GroupByContext) string {
			return timeframe.SQLBucketExpr(ctx.DateColumn, bucket)
		},
		aliasFn: func(GroupByContext) []string {
			if alias == "date" {
				return []string{"date"}
			}
			// week/month rows are normalized to also carry a canonical date
			return []string{alias, "date"}
		},
	}
}

// NewGroupByRegistry builds the default dimension catalog.
func NewGroupByRegistry() *GroupByRegistry {
	r := &GroupByRegistry{defs: map[string]GroupByDefinition{}}

	r.register(timeDim("date", timeframe.BucketDay, "date"))
	r.register(timeDim("week", timeframe.BucketWeek, "week_start"))
	r.register(timeDim("month", timeframe.BucketMonth, "month"))

	country := simpleDim("country", "visitors.country", "country", []string{joinVisitors})
	country.aliasFn = func(GroupByContext) []string { return []string{"country", "country_name"} }
	country.post = resolveCountryNames
	r.register(country)

	r.register(simpleDim("region", "visitors.region", "region", []string{joinVisitors}))
	r.register(simpleDim("city", "visitors.city", "city", []string{joinVisitors}))

	r.register(&groupByDef{
		name:     "browser",
		keyAlias: "browser",
		joins:    []string{joinVisitors},
		selectFn: func(ctx GroupByContext) []SelectColumn {
			cols := []SelectColumn{{Expr: "visitors.browser", Alias: "browser"}}
			if ctx.wantsColumn("browser_version") {
				cols = append(cols, SelectColumn{Expr: "visitors.browser_version", Alias: "browser_version"})
			}
			return cols
		},
		groupFn: func(ctx GroupByContext) string {
			if ctx.wantsColumn("browser_version") {
				return "visitors.browser, visitors.browser_version"
			}
			return "visitors.browser"
		},
		aliasFn: func(ctx GroupByContext) []string {
			if ctx.wantsColumn("browser_version") {
				return []string{"browser", "browser_version"}
			}
			return []string{"browser"}
		},
	})

	r.register(simpleDim("os", "visitors.os", "os", []string{joinVisitors}))

	device := simpleDim("device_type", "visitors.device_type", "device_type", []string{joinVisitors})
	device.post = func(_ *gorm.DB, rows []Row) error {
		for _, row := range rows {
			if v, ok := row["device_type"]; ok {
				row["device_type"] = titleCaser.String(toString(v))
			}
		}
		return nil
	}
	r.register(device)

	referrer := simpleDim("referrer", "visitors.referrer", "referrer", []string{joinVisitors})
	referrer.selectFn = func(GroupByContext) []SelectColumn {
		return []SelectColumn{
			{Expr: "visitors.referrer", Alias: "referrer"},
			{Expr: "visitors.source_channel", Alias: "source_channel"},
		}
	}
	referrer.groupFn = func(GroupByContext) string { return "visitors.referrer, visitors.source_channel" }
	referrer.aliasFn = func(GroupByContext) []string { return []string{"referrer", "source_channel"} }
	r.register(referrer)

	r.register(&groupByDef{
		name:     "page",
		keyAlias: "page_uri",
		joins:    []string{joinViews, joinResourceURIs},
		where:    "resource_uris.uri != ''",
		selectFn: func(GroupByContext) []SelectColumn {
			return []SelectColumn{
				{Expr: "resource_uris.uri", Alias: "page_uri"},
				{Expr: "resource_uris.resource_id", Alias: "page_id"},
			}
		},
		groupFn: func(GroupByContext) string { return "resource_uris.uri" },
		aliasFn: func(GroupByContext) []string { return []string{"page_uri", "page_id", "page_title"} },
		post:    resolvePageTitles,
	})

	r.register(simpleDim("author", "resources.author_id", "author_id",
		[]string{joinViews, joinResourceURIs, joinResources}))
	r.register(simpleDim("post_type", "resources.type", "post_type",
		[]string{joinViews, joinResourceURIs, joinResources}))

	visitor := &groupByDef{
		name:     "visitor",
		keyAlias: "visitor_id",
		joins:    []string{joinVisitors},
		selectFn: func(GroupByContext) []SelectColumn {
			return []SelectColumn{
				{Expr: "sessions.visitor_id", Alias: "visitor_id"},
				{Expr: "visitors.hash", Alias: "visitor_hash"},
			}
		},
		groupFn: func(GroupByContext) string { return "sessions.visitor_id" },
		aliasFn: func(GroupByContext) []string { return []string{"visitor_id", "visitor_hash"} },
	}
	r.register(visitor)

	online := *visitor
	online.name = "online_visitor"
	online.dateColumn = "sessions.ended_at"
	r.register(&online)

	event := simpleDim("event_name", "events.name", "event_name", []string{joinEvents})
	event.where = "events.name != ''"
	r.register(event)

	return r
}

var countryQuery = gountries.New()

// resolveCountryNames adds a country_name column from the ISO alpha-2 code.
func resolveCountryNames(_ *gorm.DB, rows []Row) error {
	for _, row := range rows {
		code := toString(row["country"])
		if code == "" {
			row["country_name"] = "Unknown"
			continue
		}
		country, err := countryQuery.FindCountryByAlpha(code)
		if err != nil {
			row["country_name"] = code
			continue
		}
		row["country_name"] = country.Name.Common
	}
	return nil
}

// resolvePageTitles resolves page_id values into resource titles with one IN
// query.
func resolvePageTitles(db *gorm.DB, rows []Row) error {
	ids := make([]int64, 0, len(rows))
	seen := map[int64]bool{}
	for _, row := range rows {
		id := toInt64(row["page_id"])
		if id > 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	titles := map[int64]string{}
	if len(ids) > 0 {
		var found []struct {
			ID    int64
			Title string
		}
		if err := db.Raw("SELECT id, title FROM resources WHERE id IN ?", ids).Scan(&found).Error; err != nil {
			return fmt.Errorf("error resolving page titles: %w", err)
		}
		for _, f := range found {
			titles[f.ID] = f.Title
		}
	}
	for _, row := range rows {
		if title, ok := titles[toInt64(row["page_id"])]; ok {
			row["page_title"] = title
		} else {
			row["page_title"] = toString(row["page_uri"])
		}
	}
	return nil
}
