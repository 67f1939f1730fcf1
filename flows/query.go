package flows

import ds "github.com/oaiiae/contacts-web/datastores"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListQuery is the search and pagination state of the list screen.
// The offset is always derived from Page and PageSize.
type ListQuery struct {
	Search   string
	Page     int
	PageSize int
	Total    int
}

func NewListQuery() ListQuery { return ListQuery{Page: 1, PageSize: DefaultPageSize} }

func (q ListQuery) Offset() int { return (q.Page - 1) * q.PageSize }

// Pages is the number of pages needed to show Total contacts, at least 1.
func (q ListQuery) Pages() int { return max(1, (q.Total+q.PageSize-1)/q.PageSize) }

// SetSearch changes the search term and goes back to the first page when it differs.
func (q *ListQuery) SetSearch(term string) {
	if term != q.Search {
		q.Search = term
		q.Page = 1
	}
}

// SetPage moves to page with the given page size. Out of range values are clamped.
func (q *ListQuery) SetPage(page, size int) {
	if size < 1 {
		size = q.PageSize
	}
	q.Page, q.PageSize = max(1, page), min(size, MaxPageSize)
}

func (q ListQuery) params() ds.ListParams {
	return ds.ListParams{Search: q.Search, Limit: q.PageSize, Offset: q.Offset()}
}
