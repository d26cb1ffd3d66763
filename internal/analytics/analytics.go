// Package analytics implements the statistics query engine: it turns
// declarative requests (sources, groupings, filters, date ranges,
// comparison, pagination, output format) into parameterized aggregate SQL
// over the collected fact tables, transparently redirecting to the
// pre-aggregated summary tables when a query qualifies.
//
// The package is organized into focused modules:
//   - models.go: fact and summary table model definitions
//   - query.go / builder.go: immutable query value and its fluent builder
//   - sources.go / groupby.go / filters.go: the declarative registries
//   - executor.go / summary.go: SQL planning and execution
//   - comparison.go: previous-period merging
//   - formatters.go: the four response envelopes
//   - handler.go / batch.go: request validation and orchestration
//   - helper.go: single-value convenience queries
package analytics

import (
	"fmt"
	"math"
	"strconv"
)

// Row is a single result row. Values are scalars, with two reserved nested
// keys: "previous" (a nested Row when comparison is active) and "is_other"
// (set on the synthetic tail row produced by aggregate-others).
type Row map[string]any

// Reserved row keys.
const (
	keyPrevious = "previous"
	keyIsOther  = "is_other"
	// otherLabel is the group-by value of the synthetic collapsed row.
	otherLabel = "Other"
)

// ValueType describes how a source or filter value is typed.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeFloat   ValueType = "float"
	TypeBoolean ValueType = "boolean"
	TypeDate    ValueType = "date"
)

func toInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint64:
		return int64(val)
	case float64:
		return int64(math.Round(val))
	case float32:
		return int64(math.Round(float64(val)))
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(val), 10, 64)
		return n
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(val), 64)
		return f
	default:
		return 0
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
