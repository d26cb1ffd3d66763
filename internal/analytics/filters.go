package analytics

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// FilterDefinition describes a named predicate: the column it targets, the
// declared value type used for sanitization, joins it requires, and an
// optional requirement tag that forces an extra fact table into the query.
type FilterDefinition interface {
	Name() string
	Column() string
	Type() ValueType
	Joins() []string
	Requirement() string
}

type filterDef struct {
	name        string
	column      string
	valueType   ValueType
	joins       []string
	requirement string
}

func (f *filterDef) Name() string        { return f.name }
func (f *filterDef) Column() string      { return f.column }
func (f *filterDef) Type() ValueType     { return f.valueType }
func (f *filterDef) Joins() []string     { return f.joins }
func (f *filterDef) Requirement() string { return f.requirement }

// FilterRegistry is the static catalog of filter definitions.
type FilterRegistry struct {
	defs map[string]FilterDefinition
}

// Get looks up a filter by name.
func (r *FilterRegistry) Get(name string) (FilterDefinition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

func (r *FilterRegistry) register(def FilterDefinition) {
	r.defs[def.Name()] = def
}

// NewFilterRegistry builds the default filter catalog.
func NewFilterRegistry() *FilterRegistry {
	r := &FilterRegistry{defs: map[string]FilterDefinition{}}

	visitorString := func(name, column string) {
		r.register(&filterDef{name: name, column: column, valueType: TypeString, joins: []string{joinVisitors}})
	}
	visitorString("country", "visitors.country")
	visitorString("region", "visitors.region")
	visitorString("city", "visitors.city")
	visitorString("browser", "visitors.browser")
	visitorString("browser_version", "visitors.browser_version")
	visitorString("os", "visitors.os")
	visitorString("device_type", "visitors.device_type")
	visitorString("referrer", "visitors.referrer")
	visitorString("source_channel", "visitors.source_channel")

	r.register(&filterDef{name: "logged_in", column: "visitors.user_id", valueType: TypeBoolean, joins: []string{joinVisitors}})
	r.register(&filterDef{name: "user_id", column: "visitors.user_id", valueType: TypeInteger, joins: []string{joinVisitors}})
	r.register(&filterDef{name: "visitor_id", column: "sessions.visitor_id", valueType: TypeInteger})
	r.register(&filterDef{name: "page", column: "resource_uris.uri", valueType: TypeString,
		joins: []string{joinViews, joinResourceURIs}, requirement: requirementViews})
	r.register(&filterDef{name: "event_name", column: "events.name", valueType: TypeString,
		joins: []string{joinEvents}, requirement: requirementEvents})

	return r
}

// Requirement tags a filter can impose on the executor.
const (
	requirementViews  = "views"
	requirementEvents = "events"
)

// FilterClause is the compiled output of a filter map: parameterized WHERE
// fragments plus the joins and requirements they depend on.
type FilterClause struct {
	Conditions   []string
	Params       []any
	Joins        []string
	Requirements []string
}

var dateValuePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}( \d{2}:\d{2}:\d{2})?$`)

// BuildFilters compiles a filter map into SQL fragments. Every value passes
// through type-directed sanitization before binding; this is the sole
// injection boundary, no raw value ever reaches SQL text.
func BuildFilters(reg *FilterRegistry, filters map[string]any) (FilterClause, error) {
	clause := FilterClause{}

	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def, ok := reg.Get(name)
		if !ok {
			return FilterClause{}, errInvalidFilter(name)
		}

		cond, params, err := compileFilter(def, filters[name])
		if err != nil {
			return FilterClause{}, err
		}
		if cond == "" {
			continue
		}

		clause.Conditions = append(clause.Conditions, cond)
		clause.Params = append(clause.Params, params...)
		clause.Joins = append(clause.Joins, def.Joins()...)
		if def.Requirement() != "" {
			clause.Requirements = append(clause.Requirements, def.Requirement())
		}
	}

	return clause, nil
}

func compileFilter(def FilterDefinition, value any) (string, []any, error) {
	// boolean filters mean "is logged in": 0 or NULL is anonymous, anything
	// else is authenticated, so plain equality would misclassify NULLs
	if def.Type() == TypeBoolean {
		operator := "is"
		raw := value
		if m, ok := value.(map[string]any); ok {
			for op, v := range m {
				operator, raw = op, v
			}
		}
		truthy := toInt64(sanitizeValue(def.Type(), raw)) != 0
		if operator == "is_not" {
			truthy = !truthy
		}
		col := def.Column()
		if truthy {
			return fmt.Sprintf("(%s IS NOT NULL AND %s != 0)", col, col), nil, nil
		}
		return fmt.Sprintf("(%s IS NULL OR %s = 0)", col, col), nil, nil
	}

	switch v := value.(type) {
	case map[string]any:
		conds := make([]string, 0, len(v))
		params := make([]any, 0, len(v))
		ops := make([]string, 0, len(v))
		for op := range v {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			cond, p, err := compileOperator(def, op, v[op])
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, cond)
			params = append(params, p...)
		}
		return strings.Join(conds, " AND "), params, nil
	case []any:
		return compileOperator(def, "in", v)
	default:
		return compileOperator(def, "is", value)
	}
}

func compileOperator(def FilterDefinition, operator string, value any) (string, []any, error) {
	col := def.Column()

	switch operator {
	case "is":
		return col + " = ?", []any{sanitizeValue(def.Type(), value)}, nil
	case "is_not":
		return col + " != ?", []any{sanitizeValue(def.Type(), value)}, nil
	case "in", "not_in":
		values := listValues(value)
		if len(values) == 0 {
			return "", nil, errInvalidOperator("operator %q on %q requires at least one value", operator, def.Name())
		}
		params := make([]any, len(values))
		for i, v := range values {
			params[i] = sanitizeValue(def.Type(), v)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
		keyword := "IN"
		if operator == "not_in" {
			keyword = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, keyword, placeholders), params, nil
	case "contains":
		return col + ` LIKE ? ESCAPE '\'`, []any{"%" + likeEscape(toString(sanitizeValue(TypeString, value))) + "%"}, nil
	case "starts_with":
		return col + ` LIKE ? ESCAPE '\'`, []any{likeEscape(toString(sanitizeValue(TypeString, value))) + "%"}, nil
	case "ends_with":
		return col + ` LIKE ? ESCAPE '\'`, []any{"%" + likeEscape(toString(sanitizeValue(TypeString, value)))}, nil
	case "gt":
		return col + " > ?", []any{toInt64(value)}, nil
	case "gte":
		return col + " >= ?", []any{toInt64(value)}, nil
	case "lt":
		return col + " < ?", []any{toInt64(value)}, nil
	case "lte":
		return col + " <= ?", []any{toInt64(value)}, nil
	case "before":
		return col + " < ?", []any{sanitizeValue(TypeDate, value)}, nil
	case "after":
		return col + " > ?", []any{sanitizeValue(TypeDate, value)}, nil
	case "between":
		values := listValues(value)
		if len(values) != 2 {
			return "", nil, errInvalidOperator("operator \"between\" on %q requires exactly 2 values", def.Name())
		}
		return col + " BETWEEN ? AND ?", []any{
			sanitizeValue(TypeDate, values[0]),
			sanitizeValue(TypeDate, values[1]),
		}, nil
	case "is_empty":
		return fmt.Sprintf("(%s IS NULL OR %s = '')", col, col), nil, nil
	case "is_not_empty":
		return fmt.Sprintf("(%s IS NOT NULL AND %s != '')", col, col), nil, nil
	default:
		return "", nil, errInvalidOperator("unknown operator %q on filter %q", operator, def.Name())
	}
}

func listValues(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case nil:
		return nil
	default:
		return []any{v}
	}
}

// sanitizeValue coerces a filter value to its declared type before binding.
func sanitizeValue(t ValueType, value any) any {
	switch t {
	case TypeInteger:
		return toInt64(value)
	case TypeFloat:
		return toFloat64(value)
	case TypeBoolean:
		return toInt64(value)
	case TypeDate:
		s := strings.TrimSpace(toString(value))
		if !dateValuePattern.MatchString(s) {
			return ""
		}
		return s
	default:
		s := strings.ReplaceAll(toString(value), "\x00", "")
		return strings.TrimSpace(s)
	}
}

// likeEscape escapes LIKE wildcards inside user-supplied fragments.
func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
