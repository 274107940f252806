package readmodel

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is a 1-based page number and a page size.
type Page struct {
	Number int
	Limit  int
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// ParsePage reads page and limit from query values. Missing, non-numeric or
// non-positive values fall back to the defaults and limit is capped at MaxLimit.
func ParsePage(values url.Values) Page {
	page := positiveInt(values.Get("page"), DefaultPage)
	limit := positiveInt(values.Get("limit"), DefaultLimit)
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Number: page, Limit: limit}
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// Sort is one ordering key.
type Sort struct {
	Column string
	Desc   bool
}

func (s Sort) sql() string {
	if s.Desc {
		return s.Column + " DESC"
	}
	return s.Column + " ASC"
}

// Asc and Desc build ordering keys for trusted column expressions.
func Asc(column string) Sort  { return Sort{Column: column} }
func Desc(column string) Sort { return Sort{Column: column, Desc: true} }

// ParseSort resolves a client sort request against allowed, which maps API
// field names to column expressions. "asc" sorts ascending and any other
// direction descending. An empty or unknown field sorts by allowed["createdAt"]
// when present, created_at otherwise, in the requested direction; with no
// direction either that is newest first.
func ParseSort(sortBy, sortType string, allowed map[string]string) Sort {
	col, ok := allowed[strings.TrimSpace(sortBy)]
	if !ok {
		col = "created_at"
		if createdAt, found := allowed["createdAt"]; found {
			col = createdAt
		}
	}
	if strings.EqualFold(strings.TrimSpace(sortType), "asc") {
		return Asc(col)
	}
	return Desc(col)
}
