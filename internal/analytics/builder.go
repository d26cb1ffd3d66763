package analytics

import (
	"time"

	"trafficlens/internal/timeframe"
)

// Builder assembles a Query fluently. Used by code that constructs queries
// programmatically rather than from a request payload.
type Builder struct {
	spec QuerySpec
}

// NewBuilder returns an empty query builder.
func NewBuilder() *Builder {
	return &Builder{spec: QuerySpec{ShowTotals: true}}
}

// Sources sets the requested metric names.
func (b *Builder) Sources(names ...string) *Builder {
	b.spec.Sources = names
	return b
}

// GroupBy sets the grouping dimensions.
func (b *Builder) GroupBy(names ...string) *Builder {
	b.spec.GroupBy = names
	return b
}

// Filters replaces the filter map.
func (b *Builder) Filters(filters map[string]any) *Builder {
	b.spec.Filters = filters
	return b
}

// AddFilter sets a single filter value.
func (b *Builder) AddFilter(key string, value any) *Builder {
	if b.spec.Filters == nil {
		b.spec.Filters = map[string]any{}
	}
	b.spec.Filters[key] = value
	return b
}

// DateRange sets both range boundaries (normalized engine date strings).
func (b *Builder) DateRange(from, to string) *Builder {
	b.spec.DateFrom = from
	b.spec.DateTo = to
	return b
}

// From sets the range start.
func (b *Builder) From(from string) *Builder {
	b.spec.DateFrom = from
	return b
}

// To sets the range end.
func (b *Builder) To(to string) *Builder {
	b.spec.DateTo = to
	return b
}

// LastDays sets the range to the past n days up to the end of today.
func (b *Builder) LastDays(n int) *Builder {
	b.spec.DateFrom, b.spec.DateTo = timeframe.LastDays(n, time.Now().UTC())
	return b
}

// OrderBy sets the ordering column and direction.
func (b *Builder) OrderBy(column, direction string) *Builder {
	b.spec.OrderBy = column
	b.spec.Order = direction
	return b
}

// Paginate sets page and page size.
func (b *Builder) Paginate(page, perPage int) *Builder {
	b.spec.Page = page
	b.spec.PerPage = &perPage
	return b
}

// Limit caps the result at n rows on the first page.
func (b *Builder) Limit(n int) *Builder {
	return b.Paginate(1, n)
}

// Compare enables previous-period comparison.
func (b *Builder) Compare(enabled bool) *Builder {
	b.spec.Compare = enabled
	return b
}

// Format selects the response envelope.
func (b *Builder) Format(f Format) *Builder {
	b.spec.Format = string(f)
	return b
}

// Build constructs the Query.
func (b *Builder) Build() (Query, error) {
	return NewQuery(b.spec)
}
