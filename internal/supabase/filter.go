package supabase

import (
	"net/url"
	"strconv"
	"strings"
)

// Filter is a single-field predicate in the PostgREST query grammar.
// The zero value matches everything.
type Filter struct {
	field string
	op    string
	value string
}

// Eq matches rows where field equals value
func Eq(field, value string) Filter {
	return Filter{field: field, op: "eq", value: value}
}

// EqID matches rows where field equals a numeric id
func EqID(field string, id int64) Filter {
	return Eq(field, strconv.FormatInt(id, 10))
}

// In matches rows where field is a member of values
func In(field string, values []string) Filter {
	return Filter{field: field, op: "in", value: "(" + strings.Join(values, ",") + ")"}
}

// InIDs matches rows where field is a member of a numeric id set
func InIDs(field string, ids []int64) Filter {
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = strconv.FormatInt(id, 10)
	}
	return In(field, values)
}

// IsZero reports whether the filter matches everything
func (f Filter) IsZero() bool {
	return f.field == ""
}

// FetchOptions control ordering and row caps on reads. Without an explicit
// order the store guarantees nothing about row order.
type FetchOptions struct {
	OrderBy    string
	Descending bool
	Limit      int
}

// encodeQuery renders a filter and fetch options as a query string,
// e.g. "?coach_id=eq.7&order=created_at.desc&limit=50"
func encodeQuery(filter Filter, opts *FetchOptions) string {
	params := url.Values{}

	if !filter.IsZero() {
		params.Set(filter.field, filter.op+"."+filter.value)
	}

	if opts != nil {
		if opts.OrderBy != "" {
			direction := ".asc"
			if opts.Descending {
				direction = ".desc"
			}
			params.Set("order", opts.OrderBy+direction)
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
	}

	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}
