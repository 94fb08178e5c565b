// Package table is the view-model behind every paginated admin list:
// a pagination cursor, a search dispatcher, a selection overlay and a
// schema-driven row renderer, composed per view instance by View.
package table

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidPage is a page number the user asked for that cannot exist.
	ErrInvalidPage = errors.New("invalid page")
	// ErrBrokenPage is a backend page whose rows and metadata disagree.
	ErrBrokenPage = errors.New("backend returned an inconsistent page")
)

// Pagination is the page metadata reported by the backend.
type Pagination struct {
	CurrentPage int `json:"curPage"`
	TotalPages  int `json:"totalPages"`
	PageSize    int `json:"pageSize"`
	TotalCount  int `json:"totalCount"`
}

func (p Pagination) HasPrev() bool { return p.CurrentPage > 1 }
func (p Pagination) HasNext() bool { return p.CurrentPage < p.TotalPages }

// LastPage is max(TotalPages, 1).
func (p Pagination) LastPage() int {
	if p.TotalPages < 1 {
		return 1
	}
	return p.TotalPages
}

// Page is one page of rows of a single shape.
type Page[R any] struct {
	Rows       []R        `json:"rows"`
	Pagination Pagination `json:"pagination"`
}

// Len returns the number of rows on the page.
func (p Page[R]) Len() int { return len(p.Rows) }

// IsEmpty reports whether the page holds no rows.
func (p Page[R]) IsEmpty() bool { return len(p.Rows) == 0 }

// Normalize fills in metadata the backend left out so that Check holds for
// well-formed responses: a zero page size becomes the row count (or fallback),
// a zero current page becomes 1 and missing totals are derived from the rows.
func (p *Page[R]) Normalize(fallbackSize int) {
	pg := &p.Pagination
	if pg.PageSize <= 0 {
		pg.PageSize = fallbackSize
		if len(p.Rows) > pg.PageSize {
			pg.PageSize = len(p.Rows)
		}
	}
	if pg.CurrentPage <= 0 {
		pg.CurrentPage = 1
	}
	if pg.TotalCount < len(p.Rows) {
		pg.TotalCount = (pg.CurrentPage-1)*pg.PageSize + len(p.Rows)
	}
	if pg.TotalPages <= 0 && pg.TotalCount > 0 && pg.PageSize > 0 {
		pg.TotalPages = (pg.TotalCount + pg.PageSize - 1) / pg.PageSize
	}
	if p.Rows == nil {
		p.Rows = []R{}
	}
}

// Check verifies the page invariants:
// len(rows) <= pageSize and 1 <= currentPage <= max(totalPages, 1).
func (p Page[R]) Check() error {
	pg := p.Pagination
	if pg.PageSize > 0 && len(p.Rows) > pg.PageSize {
		return errors.Wrapf(ErrBrokenPage, "page holds %d rows; page size is %d", len(p.Rows), pg.PageSize)
	}
	if pg.CurrentPage < 1 || pg.CurrentPage > pg.LastPage() {
		return errors.Wrapf(ErrBrokenPage, "current page %d out of [1, %d]", pg.CurrentPage, pg.LastPage())
	}
	return nil
}

// ClampPage bounds n to [1, max(totalPages, 1)].
func (p Pagination) ClampPage(n int) int {
	if n < 1 {
		return 1
	}
	if last := p.LastPage(); n > last {
		return last
	}
	return n
}
