package internal

import (
	"net/http"
	"strconv"
	"strings"
)

const maxListLimit = 1000

// listParams holds common query parameters for list endpoints
type listParams struct {
	limit  int
	offset int
	q      string
}

// parseListParams parses limit, offset and q from the request. A zero limit
// returns the whole list; limits above maxListLimit are clamped.
func parseListParams(r *http.Request) listParams {
	values := r.URL.Query()

	limit := 0
	if s := strings.TrimSpace(values.Get("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = min(v, maxListLimit)
		}
	}

	offset := 0
	if s := strings.TrimSpace(values.Get("offset")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	return listParams{
		limit:  limit,
		offset: offset,
		q:      strings.TrimSpace(values.Get("q")),
	}
}

// page returns the slice of items selected by p.
func page[T any](items []T, p listParams) []T {
	if p.offset >= len(items) {
		return []T{}
	}
	items = items[p.offset:]
	if p.limit > 0 && p.limit < len(items) {
		items = items[:p.limit]
	}
	return items
}

// sendListResponse writes one page of items as a bare JSON array and reports
// the unpaged total in X-Total-Count.
func sendListResponse[T any](w http.ResponseWriter, items []T, p listParams) {
	w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
	writeJSON(w, http.StatusOK, page(items, p))
}
