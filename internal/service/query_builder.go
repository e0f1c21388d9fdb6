package service

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/noah-isme/ecotrack-console/internal/models"
)

// DefaultLimit is used when a filter state carries no usable limit.
const DefaultLimit = 25

// QueryParam is a single key/value pair of a query string.
type QueryParam struct {
	Key   string
	Value string
}

// QueryParams keeps parameters in insertion order so the same filters always
// encode to the same query string.
type QueryParams []QueryParam

// Add appends a parameter.
func (q QueryParams) Add(key, value string) QueryParams {
	return append(q, QueryParam{Key: key, Value: value})
}

// Get returns the first value for key.
func (q QueryParams) Get(key string) (string, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Encode renders the parameters in order.
func (q QueryParams) Encode() string {
	if len(q) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range q {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// BuildIndicatorQuery encodes the filters for GET /indicators/. The limit is
// always sent; the other filters only when set.
func BuildIndicatorQuery(f models.FilterState) QueryParams {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := QueryParams{{Key: "limit", Value: strconv.Itoa(limit)}}
	q = addIfSet(q, "type", f.Type)
	q = addIfSet(q, "zone_id", f.ZoneID)
	q = addIfSet(q, "start_date", f.StartDate)
	q = addIfSet(q, "end_date", f.EndDate)
	return q
}

// BuildStatsQuery encodes the stats range for GET /stats/air/averages.
func BuildStatsQuery(r models.StatsRange) QueryParams {
	var q QueryParams
	q = addIfSet(q, "start_date", r.StartDate)
	q = addIfSet(q, "end_date", r.EndDate)
	return q
}

func addIfSet(q QueryParams, key, value string) QueryParams {
	value = strings.TrimSpace(value)
	if value == "" {
		return q
	}
	return q.Add(key, value)
}
