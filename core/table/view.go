package table

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrNoFilter = errors.New("view does not support filtering")
	ErrNoSearch = errors.New("view does not support search")
)

// Source identifies which dataset a View displays.
type Source int

const (
	SourceBase Source = iota
	SourceFilter
	SourceSearch
)

func (s Source) String() string {
	switch s {
	case SourceSearch:
		return "search"
	case SourceFilter:
		return "filter"
	default:
		return "base"
	}
}

// Filter is a set of field constraints applied server-side.
type Filter map[string]string

func (f Filter) IsEmpty() bool { return len(f) == 0 }

// FilterFunc loads one page of rows matching f.
type FilterFunc[R any] func(ctx context.Context, f Filter, page int) (Page[R], error)

// Snapshot is a consistent copy of a View's displayed state.
type Snapshot[R any] struct {
	Source   Source
	Page     Page[R]
	Selected []string
	// Empty is set once a search matched nothing; the rows are then empty.
	Empty   string
	Loading bool
	Err     error
	Query   Query
	Filter  Filter
}

// IsSelected reports whether key is in the snapshot's selection.
func (s Snapshot[R]) IsSelected(key string) bool {
	for _, k := range s.Selected {
		if k == key {
			return true
		}
	}
	return false
}

// View layers pagination, filtering, search and selection over one resource.
// The displayed dataset is the search results if a search is active, else the
// filtered rows if a filter is set, else the base rows. Any operation that
// replaces the displayed dataset clears the selection.
//
// A View is safe for concurrent use. Responses to superseded requests are
// dropped with ErrSuperseded.
type View[R any] struct {
	mu       sync.Mutex
	key      KeyFunc[R]
	pageSize int

	fetch    FetchFunc[R]
	filterFn FilterFunc[R]
	searchFn SearchFunc[R]
	options  Options

	base dataset[R]

	filter   Filter
	filtered dataset[R]

	query    Query // nil when not searched
	searched dataset[R]
	empty    string

	sel *Selection[R]
}

// ViewConfig holds the data sources of a View. Filter and Search are optional.
type ViewConfig[R any] struct {
	Key      KeyFunc[R]
	PageSize int
	Fetch    FetchFunc[R]
	Filter   FilterFunc[R]
	Search   SearchFunc[R]
	Options  Options
}

func NewView[R any](cfg ViewConfig[R]) *View[R] {
	return &View[R]{
		key:      cfg.Key,
		pageSize: cfg.PageSize,
		fetch:    cfg.Fetch,
		filterFn: cfg.Filter,
		searchFn: cfg.Search,
		options:  cfg.Options,
		sel:      NewSelection(cfg.Key),
	}
}

// Options returns the search options of the view.
func (v *View[R]) Options() Options { return v.options }

func (v *View[R]) Snapshot() Snapshot[R] {
	v.mu.Lock()
	defer v.mu.Unlock()

	ds := v.active()
	snap := Snapshot[R]{
		Source:   v.source(),
		Page:     ds.page,
		Selected: v.sel.Keys(),
		Empty:    v.empty,
		Loading:  ds.loading,
		Err:      ds.err,
		Query:    v.query,
	}
	if snap.Page.Rows == nil {
		snap.Page.Rows = []R{}
	}
	if v.filter != nil {
		snap.Filter = make(Filter, len(v.filter))
		for k, val := range v.filter {
			snap.Filter[k] = val
		}
	}
	return snap
}

// SelectedRows returns the selected rows in selection order.
func (v *View[R]) SelectedRows() []R {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sel.Rows()
}

// Load fetches the first page of the base dataset, if not loaded yet.
func (v *View[R]) Load(ctx context.Context) error {
	v.mu.Lock()
	loaded := v.base.loaded
	v.mu.Unlock()
	if loaded {
		return nil
	}
	return v.loadBase(ctx, 1)
}

// SetPage moves the displayed dataset to page n.
func (v *View[R]) SetPage(ctx context.Context, n int) error {
	v.mu.Lock()
	src := v.source()
	query, filter := v.query, v.filter
	v.mu.Unlock()

	switch src {
	case SourceSearch:
		return v.runSearch(ctx, query, n)
	case SourceFilter:
		return v.runFilter(ctx, filter, n)
	default:
		return v.loadBase(ctx, n)
	}
}

// Refetch reloads the displayed page (e.g. after a bulk delete).
func (v *View[R]) Refetch(ctx context.Context) error {
	v.mu.Lock()
	n := v.active().page.Pagination.CurrentPage
	v.mu.Unlock()
	return v.SetPage(ctx, n)
}

// Search parses text under opt and dispatches the search.
func (v *View[R]) Search(ctx context.Context, opt Option, text string) error {
	opts := v.options
	if len(opts) == 0 {
		opts = Options{opt}
	}
	q, err := opts.Parse(opt, text)
	if err != nil {
		return err
	}
	return v.runSearch(ctx, q, 1)
}

// ResetSearch drops the search and shows the filtered or base rows again.
// Calling it when no search is active changes nothing.
func (v *View[R]) ResetSearch() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.query == nil && !v.searched.loading {
		return
	}
	wasActive := v.source() == SourceSearch
	v.query = nil
	v.empty = ""
	v.searched.reset()
	if wasActive {
		v.sel.RemoveSelectAll()
	}
}

// SetFilter applies f and shows its first page (unless a search is active).
func (v *View[R]) SetFilter(ctx context.Context, f Filter) error {
	if f.IsEmpty() {
		v.ClearFilter()
		return nil
	}
	return v.runFilter(ctx, f, 1)
}

// ClearFilter drops the filter.
func (v *View[R]) ClearFilter() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.filter == nil && !v.filtered.loading {
		return
	}
	wasActive := v.source() == SourceFilter
	v.filter = nil
	v.filtered.reset()
	if wasActive {
		v.sel.RemoveSelectAll()
	}
}

// Toggle flips the selection of the displayed row with the given key.
func (v *View[R]) Toggle(key string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, row := range v.active().page.Rows {
		if v.key(row) == key {
			return v.sel.Toggle(row), nil
		}
	}
	return false, ErrNotDisplayed
}

// SelectAll selects every displayed row.
func (v *View[R]) SelectAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sel.SelectAll(v.active().page.Rows)
}

func (v *View[R]) RemoveSelectAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sel.RemoveSelectAll()
}

func (v *View[R]) loadBase(ctx context.Context, n int) error {
	v.mu.Lock()
	n = v.base.targetPage(n)
	token := v.base.begin()
	v.mu.Unlock()

	page, err := fetchPage(ctx, n, v.fetch)

	v.mu.Lock()
	defer v.mu.Unlock()
	replaced, err := v.base.commit(token, page, err, v.pageSize)
	if replaced && v.source() == SourceBase {
		v.sel.RemoveSelectAll()
	}
	return err
}

func (v *View[R]) runFilter(ctx context.Context, f Filter, n int) error {
	if v.filterFn == nil {
		return ErrNoFilter
	}

	v.mu.Lock()
	if !sameFilter(v.filter, f) {
		v.filtered.loaded = false
	}
	n = v.filtered.targetPage(n)
	token := v.filtered.begin()
	v.mu.Unlock()

	page, err := fetchPage(ctx, n, func(ctx context.Context, n int) (Page[R], error) {
		return v.filterFn(ctx, f, n)
	})

	v.mu.Lock()
	defer v.mu.Unlock()
	replaced, err := v.filtered.commit(token, page, err, v.pageSize)
	if replaced {
		v.filter = f
		if v.source() == SourceFilter {
			v.sel.RemoveSelectAll()
		}
	}
	return err
}

func (v *View[R]) runSearch(ctx context.Context, q Query, n int) error {
	if v.searchFn == nil {
		return ErrNoSearch
	}

	v.mu.Lock()
	if v.query == nil || v.query != q {
		v.searched.loaded = false
	}
	n = v.searched.targetPage(n)
	token := v.searched.begin()
	v.mu.Unlock()

	page, err := fetchPage(ctx, n, func(ctx context.Context, n int) (Page[R], error) {
		return v.searchFn(ctx, q, n)
	})

	v.mu.Lock()
	defer v.mu.Unlock()
	replaced, err := v.searched.commit(token, page, err, v.pageSize)
	if replaced {
		v.query = q
		v.empty = ""
		if page.IsEmpty() {
			v.empty = EmptyMessage(q)
		}
		v.sel.RemoveSelectAll()
	}
	return err
}

// source must be called with mu held.
func (v *View[R]) source() Source {
	switch {
	case v.query != nil:
		return SourceSearch
	case v.filter != nil:
		return SourceFilter
	default:
		return SourceBase
	}
}

// active must be called with mu held.
func (v *View[R]) active() *dataset[R] {
	switch v.source() {
	case SourceSearch:
		return &v.searched
	case SourceFilter:
		return &v.filtered
	default:
		return &v.base
	}
}

func sameFilter(a, b Filter) bool {
	if len(a) != len(b) || a == nil {
		return false
	}
	for k, val := range a {
		if b[k] != val {
			return false
		}
	}
	return true
}
