package analytics

// formatResponse shapes rows, totals, and query metadata into the requested
// envelope.
func (h *Handler) formatResponse(q Query, rows []Row, totals Row, total int64, prefs *Preferences) Response {
	meta := h.buildMeta(q, total, prefs)
	if rows == nil {
		rows = []Row{}
	}

	switch q.Format {
	case FormatFlat:
		return Response{"items": rows, "totals": totals, "meta": meta}
	case FormatChart:
		labels, datasets := h.chartSeries(q, rows)
		return Response{"labels": labels, "datasets": datasets, "meta": meta}
	case FormatExport:
		return Response{"data": rows, "columns": h.exportColumns(q), "meta": meta}
	default:
		data := Response{"rows": rows}
		if totals != nil {
			data["totals"] = totals
		}
		return Response{"data": data, "meta": meta}
	}
}

func (h *Handler) buildMeta(q Query, total int64, prefs *Preferences) Response {
	totalPages := int64(1)
	if q.PerPage > 0 && total > 0 {
		totalPages = (total + int64(q.PerPage) - 1) / int64(q.PerPage)
	}
	meta := Response{
		"date_from":   q.DateFrom,
		"date_to":     q.DateTo,
		"page":        q.Page,
		"per_page":    q.PerPage,
		"total":       total,
		"total_pages": totalPages,
	}
	if prefs != nil {
		meta["preferences"] = prefs
	} else {
		meta["preferences"] = nil
	}
	return meta
}

// exportColumns is the header list CSV writers pair with export rows: the
// explicit projection when one was requested, otherwise dimension aliases
// followed by metrics.
func (h *Handler) exportColumns(q Query) []string {
	if len(q.Columns) > 0 {
		return q.Columns
	}
	columns := make([]string, 0, len(q.GroupBy)+len(q.Sources))
	ctx := GroupByContext{Columns: q.Columns}
	for _, name := range q.GroupBy {
		if grp, ok := h.executor.groups.Get(name); ok {
			columns = append(columns, grp.Aliases(ctx)...)
		}
	}
	return append(columns, q.Sources...)
}

// chartSeries pivots rows into parallel label and dataset arrays, one
// dataset per requested metric. Under comparison each metric also gets a
// previous-period dataset aligned to the same labels.
func (h *Handler) chartSeries(q Query, rows []Row) ([]string, []Response) {
	labelKey := ""
	if len(q.GroupBy) > 0 {
		if grp, ok := h.executor.groups.Get(q.GroupBy[0]); ok {
			labelKey = grp.KeyAlias()
			if grp.TimeSeries() {
				labelKey = "date"
			}
		}
	}

	labels := make([]string, 0, len(rows))
	for _, row := range rows {
		if labelKey == "" {
			labels = append(labels, "")
			continue
		}
		labels = append(labels, toString(row[labelKey]))
	}

	datasets := make([]Response, 0, len(q.Sources))
	for _, name := range q.Sources {
		data := make([]any, 0, len(rows))
		for _, row := range rows {
			data = append(data, row[name])
		}
		datasets = append(datasets, Response{"label": name, "data": data})
	}
	if q.Compare {
		for _, name := range q.Sources {
			data := make([]any, 0, len(rows))
			for _, row := range rows {
				if prev, ok := row[keyPrevious].(map[string]any); ok {
					data = append(data, prev[name])
				} else {
					data = append(data, nil)
				}
			}
			datasets = append(datasets, Response{"label": name + "_previous", "data": data})
		}
	}
	return labels, datasets
}
