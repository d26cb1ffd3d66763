package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Format selects the response envelope.
type Format string

const (
	FormatTable  Format = "table"
	FormatFlat   Format = "flat"
	FormatChart  Format = "chart"
	FormatExport Format = "export"
)

const (
	defaultPerPage = 10
	maxPerPage     = 1000
)

// Query is a fully-specified, immutable analytics query. Instances are
// created per request and never mutated; transformations return copies so a
// query can safely spawn its previous-period variant while the original
// keeps serving totals and response metadata.
type Query struct {
	Sources          []string
	GroupBy          []string
	Filters          map[string]any
	DateFrom         string
	DateTo           string
	OrderBy          string
	Order            string
	Page             int
	PerPage          int // 0 means no pagination
	Compare          bool
	DateColumn       string
	AggregateOthers  bool
	OriginalPerPage  int // caller-requested per_page kept when aggregate-others inflates the fetch size
	ShowTotals       bool
	Format           Format
	Columns          []string
	NeedsCount       bool
	PreviousDateFrom string
	PreviousDateTo   string
}

// QuerySpec carries the normalized request values used to construct a
// Query. Validation of names (sources, group-bys, filters, columns) happens
// at the request layer; the constructor only enforces shape invariants.
type QuerySpec struct {
	Sources          []string
	GroupBy          []string
	Filters          map[string]any
	DateFrom         string
	DateTo           string
	OrderBy          string
	Order            string
	Page             int  // 0 = unset
	PerPage          *int // nil = unset
	Compare          bool
	DateColumn       string
	AggregateOthers  bool
	OriginalPerPage  int
	ShowTotals       bool
	Format           string // "" = table
	Columns          []string
	PreviousDateFrom string
	PreviousDateTo   string
}

// NewQuery builds a Query from a normalized spec. It rejects empty sources
// and unsupported formats: unlike the request-layer validation this is
// strict and immediate, so a Query can never exist without a source or with
// an undefined format.
func NewQuery(spec QuerySpec) (Query, error) {
	if len(spec.Sources) == 0 {
		return Query{}, newQueryError(CodeInvalidSource, "at least one source is required")
	}

	format := Format(spec.Format)
	if spec.Format == "" {
		format = FormatTable
	}
	switch format {
	case FormatTable, FormatFlat, FormatChart, FormatExport:
	default:
		return Query{}, errInvalidFormat(spec.Format)
	}

	order := "DESC"
	if strings.EqualFold(spec.Order, "ASC") {
		order = "ASC"
	}

	page := spec.Page
	if page < 1 {
		page = 1
	}

	perPage := 0
	if spec.PerPage != nil {
		perPage = *spec.PerPage
		if perPage < 1 {
			perPage = 1
		}
		if perPage > maxPerPage {
			perPage = maxPerPage
		}
	} else if len(spec.GroupBy) > 0 {
		// ungrouped queries return a single row and need no page size
		perPage = defaultPerPage
	}

	filters := spec.Filters
	if filters == nil {
		filters = map[string]any{}
	}

	return Query{
		Sources:          append([]string(nil), spec.Sources...),
		GroupBy:          append([]string(nil), spec.GroupBy...),
		Filters:          filters,
		DateFrom:         spec.DateFrom,
		DateTo:           spec.DateTo,
		OrderBy:          spec.OrderBy,
		Order:            order,
		Page:             page,
		PerPage:          perPage,
		Compare:          spec.Compare,
		DateColumn:       spec.DateColumn,
		AggregateOthers:  spec.AggregateOthers,
		OriginalPerPage:  spec.OriginalPerPage,
		ShowTotals:       spec.ShowTotals,
		Format:           format,
		Columns:          append([]string(nil), spec.Columns...),
		NeedsCount:       format != FormatFlat,
		PreviousDateFrom: spec.PreviousDateFrom,
		PreviousDateTo:   spec.PreviousDateTo,
	}, nil
}

// WithDateRange returns a copy of the query over a different date range.
func (q Query) WithDateRange(from, to string) Query {
	q.DateFrom = from
	q.DateTo = to
	return q
}

// WithoutComparison returns a copy with comparison disabled, used for the
// previous-period sub-query so it cannot recurse.
func (q Query) WithoutComparison() Query {
	q.Compare = false
	q.PreviousDateFrom = ""
	q.PreviousDateTo = ""
	return q
}

// HasGroupBy reports whether any grouping dimension is active.
func (q Query) HasGroupBy() bool {
	return len(q.GroupBy) > 0
}

// Offset returns the SQL offset for the current page.
func (q Query) Offset() int {
	if q.PerPage <= 0 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

// AggregationLimit is the row cap applied by aggregate-others collapsing:
// the caller-requested per_page, falling back to the effective one.
func (q Query) AggregationLimit() int {
	if q.OriginalPerPage > 0 {
		return q.OriginalPerPage
	}
	return q.PerPage
}

// CacheKey derives a stable cache key from every field that affects the
// result.
func (q Query) CacheKey() string {
	payload, _ := json.Marshal(q)
	sum := sha256.Sum256(payload)
	return "query:" + hex.EncodeToString(sum[:])
}
