// Package query interprets list-endpoint query strings: equality filters,
// pagination and sorting over a resource's record collection.
package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// Reserved control keys. Every other query key is an equality filter.
const (
	keyPage  = "_page"
	keyLimit = "_limit"
	keySort  = "_sort"
	keyOrder = "_order"
)

// Query is the parsed form of a list request's query string.
type Query struct {
	// Filters maps field name to the required string-coerced value.
	// Multiple filters combine with logical AND.
	Filters map[string]string
	// Page is the 1-indexed page number (default 1).
	Page int
	// Limit is the page size. Zero means the full filtered length.
	Limit int
	// Sort is the field to sort by. Empty means no sorting.
	Sort string
	// Order is "desc" for descending; anything else is ascending.
	Order string
}

// Parse extracts filter, pagination and sort parameters from query values.
// Unparsable _page/_limit values fall back to their defaults.
func Parse(values url.Values) *Query {
	q := &Query{
		Filters: make(map[string]string),
		Page:    1,
	}

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		value := vals[0]

		switch key {
		case keyPage:
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				q.Page = n
			}
		case keyLimit:
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				q.Limit = n
			}
		case keySort:
			q.Sort = value
		case keyOrder:
			q.Order = value
		default:
			q.Filters[key] = value
		}
	}

	return q
}

// Apply runs the query against a collection in strict order: filter, count,
// paginate, then sort the paginated window. The total is the filtered count
// before pagination. Sorting only the returned window mirrors the original
// engine's behavior; page boundaries are computed on unsorted data.
func (q *Query) Apply(records []map[string]any) ([]map[string]any, int) {
	filtered := q.filter(records)
	total := len(filtered)

	window := q.paginate(filtered)
	q.sortWindow(window)

	return window, total
}

// filter keeps records whose string-coerced field values equal every filter
// value. Unknown field names filter out all records.
func (q *Query) filter(records []map[string]any) []map[string]any {
	result := make([]map[string]any, 0, len(records))

	for _, record := range records {
		matched := true
		for field, want := range q.Filters {
			if fmt.Sprintf("%v", record[field]) != want {
				matched = false
				break
			}
		}
		if matched {
			result = append(result, record)
		}
	}

	return result
}

// paginate slices the filtered collection to the requested page window.
// An out-of-range page yields an empty sequence.
func (q *Query) paginate(records []map[string]any) []map[string]any {
	limit := q.Limit
	if limit <= 0 {
		limit = len(records)
	}

	start := (q.Page - 1) * limit
	if start >= len(records) {
		return make([]map[string]any, 0)
	}

	end := start + limit
	if end > len(records) {
		end = len(records)
	}

	return records[start:end]
}

// sortWindow stable-sorts the window by the sort field. Values compare
// numerically when both are numbers, lexicographically otherwise.
func (q *Query) sortWindow(window []map[string]any) {
	if q.Sort == "" {
		return
	}

	desc := q.Order == "desc"
	sort.SliceStable(window, func(i, j int) bool {
		a, b := window[i][q.Sort], window[j][q.Sort]
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
}

// less compares two record field values.
func less(a, b any) bool {
	na, aok := asNumber(a)
	nb, bok := asNumber(b)
	if aok && bok {
		return na < nb
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

// asNumber extracts a numeric value. JSON decoding produces float64, but
// int variants are handled for records built in code.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
