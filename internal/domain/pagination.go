package domain

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// PageRequest is the normalized paging input of every list operation.
type PageRequest struct {
	Page    int
	PerPage int
}

// NewPageRequest clamps page to >= 1 and per_page to [1, MaxPerPage].
// Non-positive per_page falls back to DefaultPerPage.
func NewPageRequest(page, perPage int) PageRequest {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return PageRequest{Page: page, PerPage: perPage}
}

// Offset returns the row offset of the requested page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Pagination is the block attached to every collection response.
type Pagination struct {
	Page    int   `json:"page"`
	Pages   int   `json:"pages"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

// NewPagination builds the pagination block for a page of a collection with total rows.
func NewPagination(p PageRequest, total int64) Pagination {
	pages := 0
	if total > 0 {
		pages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	return Pagination{
		Page:    p.Page,
		Pages:   pages,
		PerPage: p.PerPage,
		Total:   total,
		HasNext: p.Page < pages,
		HasPrev: p.Page > 1,
	}
}
