package analytics

import (
	"time"

	"trafficlens/internal/timeframe"
)

// previousRange returns the comparison period for a query: the explicit
// previous_date_from/to when supplied, otherwise the window of equal length
// immediately preceding the current range.
func previousRange(q Query) (string, string, error) {
	if q.PreviousDateFrom != "" && q.PreviousDateTo != "" {
		return q.PreviousDateFrom, q.PreviousDateTo, nil
	}

	fromBase, suffix := timeframe.SplitSuffix(q.DateFrom)
	toBase, _ := timeframe.SplitSuffix(q.DateTo)
	from, err := time.Parse(timeframe.DateTimeLayout, fromBase)
	if err != nil {
		return "", "", errInvalidDateRange(q.DateFrom)
	}
	to, err := time.Parse(timeframe.DateTimeLayout, toBase)
	if err != nil {
		return "", "", errInvalidDateRange(q.DateTo)
	}

	span := to.Sub(from)
	prevTo := from.Add(-time.Second)
	prevFrom := prevTo.Add(-span)
	return prevFrom.Format(timeframe.DateTimeLayout) + suffix,
		prevTo.Format(timeframe.DateTimeLayout) + suffix, nil
}

// WithComparison runs the same query over the previous period and attaches
// the prior metric values to each current row under "previous". Time series
// align by position, other dimensions match on the key column, and the
// ungrouped case pairs the two single rows.
func (e *Executor) WithComparison(q Query, current Result) (Result, error) {
	prevFrom, prevTo, err := previousRange(q)
	if err != nil {
		return Result{}, err
	}

	prevQuery := q.WithoutComparison().WithDateRange(prevFrom, prevTo)
	prevQuery.NeedsCount = false

	timeSeries := false
	keyAlias := ""
	if len(q.GroupBy) > 0 {
		grp, ok := e.groups.Get(q.GroupBy[0])
		if !ok {
			return Result{}, errInvalidGroupBy(q.GroupBy[0])
		}
		timeSeries = grp.TimeSeries()
		keyAlias = grp.KeyAlias()
		if !timeSeries {
			// fetch all previous rows so every key on the current page
			// can find its counterpart
			prevQuery.PerPage = 0
			prevQuery.Page = 1
		}
	}

	prev, err := e.Execute(prevQuery)
	if err != nil {
		return Result{}, err
	}

	switch {
	case timeSeries:
		for i, row := range current.Rows {
			if i < len(prev.Rows) {
				row[keyPrevious] = metricsOnly(prev.Rows[i], q.Sources)
			}
		}
	case keyAlias != "":
		byKey := make(map[string]Row, len(prev.Rows))
		for _, row := range prev.Rows {
			byKey[toString(row[keyAlias])] = row
		}
		for _, row := range current.Rows {
			if match, ok := byKey[toString(row[keyAlias])]; ok {
				row[keyPrevious] = metricsOnly(match, q.Sources)
			}
		}
	default:
		if len(current.Rows) > 0 && len(prev.Rows) > 0 {
			current.Rows[0][keyPrevious] = metricsOnly(prev.Rows[0], q.Sources)
		}
	}
	return current, nil
}

// CompareTotals attaches the previous period's aggregate row to the totals.
func (e *Executor) CompareTotals(q Query, totals Row) (Row, error) {
	prevFrom, prevTo, err := previousRange(q)
	if err != nil {
		return nil, err
	}
	prevTotals, err := e.ExecuteTotals(q.WithoutComparison().WithDateRange(prevFrom, prevTo))
	if err != nil {
		return nil, err
	}
	totals[keyPrevious] = metricsOnly(prevTotals, q.Sources)
	return totals, nil
}

// metricsOnly projects a row down to the requested metric columns.
func metricsOnly(row Row, sources []string) map[string]any {
	out := make(map[string]any, len(sources))
	for _, name := range sources {
		out[name] = row[name]
	}
	return out
}
