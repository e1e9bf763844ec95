package shared

import (
	"math"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name                 string
		page, perPage, total int
		want                 Pagination
	}{
		{"defaults", 0, 0, 45, Pagination{Page: 1, PerPage: 20, Total: 45, TotalPages: 3}},
		{"capped", 2, 500, 250, Pagination{Page: 2, PerPage: 100, Total: 250, TotalPages: 3}},
		{"empty", 1, 10, 0, Pagination{Page: 1, PerPage: 10, Total: 0, TotalPages: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPagination(tt.page, tt.perPage, tt.total))
		})
	}
}

func TestPaginationFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/roles?page=3&per_page=oops", nil)
	p := PaginationFromRequest(r, 70)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 20, p.PerPage)
}

func TestPageOf(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{3, 4}, PageOf(items, NewPagination(2, 2, len(items))))
	assert.Equal(t, []int{5}, PageOf(items, NewPagination(3, 2, len(items))))
	assert.Empty(t, PageOf(items, NewPagination(9, 2, len(items))))
}

func TestBoundsPastLastPage(t *testing.T) {
	tests := []struct {
		name       string
		pagination Pagination
		start, end int
	}{
		{"last partial page", NewPagination(3, 20, 45), 40, 45},
		{"first page past total", NewPagination(4, 20, 45), 45, 45},
		{"huge page", NewPagination(math.MaxInt64/2, 20, 3), 3, 3},
		{"overflowing page", NewPagination(math.MaxInt64, 20, 3), 3, 3},
		{"overflowing page max per page", NewPagination(math.MaxInt64, 100, 250), 250, 250},
		{"empty listing", NewPagination(math.MaxInt64, 20, 0), 0, 0},
		{"zero value", Pagination{}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.pagination.Bounds()
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestPageOfHugeRequestedPage(t *testing.T) {
	items := []string{"admin", "student", "teacher"}
	r := httptest.NewRequest("GET", "/api/roles?page="+strconv.Itoa(math.MaxInt64), nil)
	p := PaginationFromRequest(r, len(items))
	assert.Equal(t, math.MaxInt64, p.Page)
	assert.NotPanics(t, func() {
		assert.Empty(t, PageOf(items, p))
	})
}
