package table

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrSuperseded is returned when a response arrives after a newer request
// for the same dataset was issued; the response is dropped.
var ErrSuperseded = errors.New("request superseded by a newer one")

// FetchFunc loads one page (1-based) of a resource.
type FetchFunc[R any] func(ctx context.Context, page int) (Page[R], error)

// fetchPage loads page n. When rows were deleted since the page count was
// known, the backend answers with a page past its last one; the last page is
// loaded instead, once.
func fetchPage[R any](ctx context.Context, n int, fetch FetchFunc[R]) (Page[R], error) {
	page, err := fetch(ctx, n)
	if err != nil {
		return page, err
	}
	if pg := page.Pagination; pg.CurrentPage > pg.LastPage() {
		return fetch(ctx, pg.LastPage())
	}
	return page, nil
}

// dataset is the state of one paginated source. It is not safe for
// concurrent use; the owner (Cursor or View) guards it.
type dataset[R any] struct {
	page    Page[R]
	err     error
	loaded  bool
	loading bool
	seq     uint64 // last issued request
}

// begin issues a new request token. Any response carrying an older token is stale.
func (ds *dataset[R]) begin() uint64 {
	ds.seq++
	ds.loading = true
	return ds.seq
}

// invalidate makes every in-flight response stale.
func (ds *dataset[R]) invalidate() {
	ds.seq++
	ds.loading = false
}

// commit applies a response. On success rows and pagination are replaced
// together; on failure the previous page is kept and the error recorded.
// It reports whether the page was replaced.
func (ds *dataset[R]) commit(token uint64, page Page[R], err error, pageSize int) (bool, error) {
	if token != ds.seq {
		return false, ErrSuperseded
	}
	ds.loading = false
	if err == nil {
		page.Normalize(pageSize)
		err = page.Check()
	}
	if err != nil {
		ds.err = err
		return false, err
	}
	ds.page = page
	ds.err = nil
	ds.loaded = true
	return true, nil
}

func (ds *dataset[R]) reset() {
	ds.invalidate()
	ds.page = Page[R]{}
	ds.err = nil
	ds.loaded = false
}

func (ds *dataset[R]) targetPage(n int) int {
	if !ds.loaded {
		if n < 1 {
			return 1
		}
		return n
	}
	return ds.page.Pagination.ClampPage(n)
}

// Cursor holds the current page of a resource and moves between pages.
// There is no caching: returning to a page fetches it again.
type Cursor[R any] struct {
	mu       sync.Mutex
	fetch    FetchFunc[R]
	pageSize int
	ds       dataset[R]
}

func NewCursor[R any](fetch FetchFunc[R], pageSize int) *Cursor[R] {
	return &Cursor[R]{fetch: fetch, pageSize: pageSize}
}

// Current returns the last successfully fetched page.
func (c *Cursor[R]) Current() Page[R] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ds.page
}

// Err returns the error of the last completed request, if it failed.
func (c *Cursor[R]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ds.err
}

func (c *Cursor[R]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ds.loading
}

// SetPage fetches page n. Pages outside the known range are clamped.
func (c *Cursor[R]) SetPage(ctx context.Context, n int) error {
	c.mu.Lock()
	n = c.ds.targetPage(n)
	token := c.ds.begin()
	c.mu.Unlock()

	page, err := fetchPage(ctx, n, c.fetch)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.ds.commit(token, page, err, c.pageSize)
	return err
}

// Refetch reloads the current page.
func (c *Cursor[R]) Refetch(ctx context.Context) error {
	return c.SetPage(ctx, c.currentPage())
}

func (c *Cursor[R]) Next(ctx context.Context) error {
	return c.SetPage(ctx, c.currentPage()+1)
}

func (c *Cursor[R]) Prev(ctx context.Context) error {
	return c.SetPage(ctx, c.currentPage()-1)
}

func (c *Cursor[R]) currentPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ds.loaded {
		return 1
	}
	return c.ds.page.Pagination.CurrentPage
}
