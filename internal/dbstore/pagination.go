package dbstore

import "github.com/Masterminds/squirrel"

// Page is the uniform pagination envelope every List* method returns
// (spec.md §4.1).
type Page[T any] struct {
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
	Items    []T `json:"items"`
	NumTotal int `json:"num_total"`
}

// PageRequest is the input side of pagination; PerPage defaults to 50
// when zero, matching spec.md §4.1.
type PageRequest struct {
	Page    int
	PerPage int
}

func (r PageRequest) normalized() (page, perPage, offset int) {
	page = r.Page
	if page < 1 {
		page = 1
	}
	perPage = r.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	return page, perPage, (page - 1) * perPage
}

// applyPage adds LIMIT/OFFSET to a squirrel select built for the items
// query (not the count query).
func applyPage(b squirrel.SelectBuilder, r PageRequest) (squirrel.SelectBuilder, int, int) {
	page, perPage, offset := r.normalized()
	return b.Limit(uint64(perPage)).Offset(uint64(offset)), page, perPage
}

// Filter is a single composable predicate: column equality, substring,
// or case-insensitive match, per spec.md §4.1 ("Filtering is composable").
type Filter struct {
	Column        string
	Value         any
	Substring     bool
	CaseInsensitive bool
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter { return Filter{Column: column, Value: value} }

// Like builds a substring filter (case-sensitive).
func Like(column, value string) Filter {
	return Filter{Column: column, Value: value, Substring: true}
}

// ILike builds a case-insensitive substring filter.
func ILike(column, value string) Filter {
	return Filter{Column: column, Value: value, Substring: true, CaseInsensitive: true}
}

func (f Filter) apply(b squirrel.SelectBuilder) squirrel.SelectBuilder {
	switch {
	case f.Substring && f.CaseInsensitive:
		return b.Where(squirrel.ILike{f.Column: "%" + f.Value.(string) + "%"})
	case f.Substring:
		return b.Where(squirrel.Like{f.Column: "%" + f.Value.(string) + "%"})
	default:
		return b.Where(squirrel.Eq{f.Column: f.Value})
	}
}

// applyFilters folds every filter onto b in order.
func applyFilters(b squirrel.SelectBuilder, filters []Filter) squirrel.SelectBuilder {
	for _, f := range filters {
		b = f.apply(b)
	}
	return b
}
