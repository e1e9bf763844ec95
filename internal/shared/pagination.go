package shared

import (
	"math"
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PaginationFromRequest reads the page and per_page query parameters.
// Missing or malformed values fall back to defaults.
func PaginationFromRequest(r *http.Request, total int) Pagination {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return NewPagination(page, perPage, total)
}

// Bounds returns the half-open slice range of the current page. Pages past
// the last one yield an empty range without computing an overflowing offset.
func (p Pagination) Bounds() (start, end int) {
	if p.Total <= 0 || p.PerPage <= 0 || p.Page <= 0 {
		return 0, 0
	}
	if p.Page-1 > (p.Total-1)/p.PerPage {
		return p.Total, p.Total
	}
	start = (p.Page - 1) * p.PerPage
	end = start + p.PerPage
	if end > p.Total {
		end = p.Total
	}
	return start, end
}

// PageOf returns the items of the current page.
func PageOf[T any](items []T, p Pagination) []T {
	start, end := p.Bounds()
	return items[start:end]
}
