package pagination

import (
	"errors"
)

const (
	DefaultLimit = 50
	MaxLimit     = 250
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Pagination is keyset pagination: Cursor is the id of the last item of the
// previous page.
type Pagination struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit"`
}

// Normalize clamps Limit into [1, MaxLimit], using def when unset.
func (p Pagination) Normalize(def int) Pagination {
	if def <= 0 {
		def = DefaultLimit
	}
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

type Page[T any] struct {
	Items      []T    `json:"items"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// BuildPage trims data fetched with limit+1 rows down to limit and derives
// hasMore and the next cursor from it.
func BuildPage[T any](data []T, limit int, extractCursor func(T) string) Page[T] {
	if len(data) == 0 {
		return Page[T]{Items: []T{}}
	}

	hasMore := false
	if limit > 0 && len(data) > limit {
		hasMore = true
		data = data[:limit]
	}

	page := Page[T]{
		Items:   data,
		HasMore: hasMore,
	}
	if hasMore {
		page.NextCursor = extractCursor(data[len(data)-1])
	}

	return page
}
