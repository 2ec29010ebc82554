package shared

import "math"

// ListFilters represents standard list filters shared by the CRUD surfaces.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	SortBy   string
	SortDir  string
	IsActive *bool
}

// Offset computes the row offset for the current page.
func (f ListFilters) Offset() int {
	page := f.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * f.Limit
	if offset < 0 {
		return 0
	}
	return offset
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}
