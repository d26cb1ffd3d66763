package analytics

import "strings"

// maxBatchQueries is the hard cap on sub-queries per batch request.
const maxBatchQueries = 20

// prefsSuffix marks sub-queries that only fetch preference metadata. They
// always execute regardless of widget visibility and skip filter merging.
const prefsSuffix = "_prefs"

// BatchRequest groups named sub-queries sharing global defaults that each
// entry may override.
type BatchRequest struct {
	Queries          []Request `json:"queries"`
	DateFrom         string    `json:"date_from"`
	DateTo           string    `json:"date_to"`
	PreviousDateFrom string    `json:"previous_date_from"`
	PreviousDateTo   string    `json:"previous_date_to"`
	Filters          any       `json:"filters"`
	Compare          *bool     `json:"compare"`
	PageContext      string    `json:"page_context"`
}

// BatchResponse reports per-ID results, per-ID errors, and skipped IDs.
type BatchResponse struct {
	Success bool                 `json:"success"`
	Items   map[string]Response  `json:"items"`
	Errors  map[string]BatchItem `json:"errors"`
	Skipped []string             `json:"skipped"`
	Meta    Response             `json:"meta"`
}

// BatchItem is a per-sub-query error.
type BatchItem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleBatch executes up to 20 named sub-queries. Each failure is isolated
// per ID; the batch fails outright only when the cap is exceeded or every
// sub-query failed.
func (h *Handler) HandleBatch(batch BatchRequest) (BatchResponse, error) {
	if len(batch.Queries) > maxBatchQueries {
		return BatchResponse{}, errBatchLimitExceeded(len(batch.Queries))
	}

	globalFilters, err := normalizeFilters(batch.Filters)
	if err != nil {
		return BatchResponse{}, err
	}

	var visible map[string]bool
	var pagePrefs *Preferences
	if batch.PageContext != "" && h.prefs != nil {
		pagePrefs, err = h.prefs.Get(batch.PageContext)
		if err != nil {
			return BatchResponse{}, err
		}
		if pagePrefs != nil && len(pagePrefs.VisibleWidgets) > 0 {
			visible = make(map[string]bool, len(pagePrefs.VisibleWidgets))
			for _, id := range pagePrefs.VisibleWidgets {
				visible[id] = true
			}
		}
	}

	resp := BatchResponse{
		Items:  map[string]Response{},
		Errors: map[string]BatchItem{},
		Meta:   Response{"preferences": pagePrefs},
	}

	for _, sub := range batch.Queries {
		id := strings.TrimSpace(sub.ID)
		if id == "" {
			continue
		}
		isPrefs := strings.HasSuffix(id, prefsSuffix)
		if visible != nil && !visible[id] && !isPrefs {
			resp.Skipped = append(resp.Skipped, id)
			continue
		}

		merged := h.mergeGlobals(sub, batch, globalFilters, isPrefs)
		item, err := h.Handle(merged)
		if err != nil {
			h.logger.Error("batch sub-query failed", "id", id, "error", err)
			resp.Errors[id] = BatchItem{Code: ErrorCode(err), Message: err.Error()}
			continue
		}
		resp.Items[id] = item
	}

	resp.Success = len(resp.Errors) == 0 || len(resp.Items) > 0
	return resp, nil
}

// mergeGlobals applies batch-level defaults to a sub-query. Date ranges
// override only as complete pairs, and per-query filters win key-for-key
// over global filters.
func (h *Handler) mergeGlobals(sub Request, batch BatchRequest, globalFilters map[string]any, isPrefs bool) Request {
	if sub.DateFrom == "" || sub.DateTo == "" {
		sub.DateFrom = batch.DateFrom
		sub.DateTo = batch.DateTo
	}
	if sub.PreviousDateFrom == "" || sub.PreviousDateTo == "" {
		sub.PreviousDateFrom = batch.PreviousDateFrom
		sub.PreviousDateTo = batch.PreviousDateTo
	}
	if sub.Compare == nil {
		sub.Compare = batch.Compare
	}

	if !isPrefs && len(globalFilters) > 0 {
		subFilters, err := normalizeFilters(sub.Filters)
		if err != nil || subFilters == nil {
			subFilters = map[string]any{}
		}
		merged := make(map[string]any, len(globalFilters)+len(subFilters))
		for k, v := range globalFilters {
			merged[k] = v
		}
		for k, v := range subFilters {
			merged[k] = v
		}
		sub.Filters = merged
	}
	return sub
}
