package echoweb

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/table"
	"github.com/trezcool/masomo/portal/services/backend"
)

// keyed rows identify themselves for selection.
type keyed interface {
	Key() string
}

type (
	choice struct {
		Value    string
		Label    string
		Selected bool
	}

	filterField struct {
		Name    string
		Label   string
		Choices []choice
	}

	// tableData is what table.html renders.
	tableData struct {
		Base       string
		Options    table.Options
		Option     string
		Text       string
		Searching  bool
		Filters    []filterField
		Filtered   bool
		Selectable bool
		Selected   int
		Bulk       []table.Action
		Table      table.Rendered
		Pagination *table.Pagination
		Empty      string
		Err        string
	}
)

// tableSpec declares one paginated list page and its controls.
type tableSpec[R keyed] struct {
	name  string // workspace key
	title string
	base  string // route of the list page

	fetch  func(c *backend.Client) table.FetchFunc[R]
	filter func(c *backend.Client) table.FilterFunc[R] // optional
	search func(c *backend.Client) table.SearchFunc[R] // optional
	// filters lists the filter controls, optional
	filters []filterField
	options table.Options

	schema     func(ctx echo.Context) table.Schema[R]
	selectable bool
	bulk       []table.Action
}

func rowKey[R keyed](row R) string { return row.Key() }

// view returns the session's view of the table.
func (spec tableSpec[R]) view(s *Server, ctx echo.Context) *table.View[R] {
	return viewOf(s.workspace(ctx), spec.name, func() *table.View[R] {
		c := s.client(ctx)
		cfg := table.ViewConfig[R]{
			Key:      rowKey[R],
			PageSize: s.Conf.Server.DefaultPageSize,
			Fetch:    spec.fetch(c),
			Options:  spec.options,
		}
		if spec.filter != nil {
			cfg.Filter = spec.filter(c)
		}
		if spec.search != nil {
			cfg.Search = spec.search(c)
		}
		return table.NewView(cfg)
	})
}

// register mounts the list page and its controls on g; base is relative to g.
func (spec tableSpec[R]) register(s *Server, g *echo.Group, base string) {
	g.GET(base, spec.list(s))
	if spec.search != nil {
		g.POST(base+"/search", spec.doSearch(s))
		g.POST(base+"/reset", spec.resetSearch(s))
	}
	if spec.filter != nil {
		g.POST(base+"/filter", spec.setFilter(s))
		g.POST(base+"/filter/clear", spec.clearFilter(s))
	}
	if spec.selectable {
		g.POST(base+"/select", spec.toggle(s))
		g.POST(base+"/select-all", spec.selectAll(s))
		g.POST(base+"/clear", spec.clearSelection(s))
	}
}

func (spec tableSpec[R]) list(s *Server) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		v := spec.view(s, ctx)
		reqCtx := ctx.Request().Context()

		var err error
		if p := ctx.QueryParam("page"); p != "" {
			n, convErr := strconv.Atoi(p)
			if convErr != nil || n < 1 {
				return core.NewValidationError(table.ErrInvalidPage, core.FieldError{Field: "page", Error: "enter a page number"})
			}
			err = v.SetPage(reqCtx, n)
		} else {
			err = v.Load(reqCtx)
		}
		if errors.Cause(err) == table.ErrSuperseded {
			err = nil
		}
		if err != nil && isXHR(ctx) {
			return err
		}

		snap := v.Snapshot()
		if isXHR(ctx) {
			return ctx.JSON(http.StatusOK, echo.Map{
				"source":     snap.Source.String(),
				"rows":       snap.Page.Rows,
				"pagination": snap.Page.Pagination,
				"selected":   snap.Selected,
				"empty":      snap.Empty,
			})
		}
		p := newPage(ctx, spec.title, spec.data(ctx, snap))
		if err != nil {
			// the previous page stays displayed
			p.Toast = &Toast{Kind: "error", Message: errors.Cause(err).Error()}
		}
		return ctx.Render(http.StatusOK, "table", p)
	}
}

func (spec tableSpec[R]) data(ctx echo.Context, snap table.Snapshot[R]) tableData {
	d := tableData{
		Base:       spec.base,
		Options:    spec.options,
		Option:     string(spec.options.Default()),
		Searching:  snap.Source == table.SourceSearch,
		Filtered:   snap.Source == table.SourceFilter,
		Selectable: spec.selectable,
		Selected:   len(snap.Selected),
		Bulk:       spec.bulk,
		Empty:      snap.Empty,
	}
	if snap.Query != nil {
		d.Option = string(snap.Query.Option())
		d.Text = snap.Query.Text()
	}
	if snap.Err != nil {
		d.Err = errors.Cause(snap.Err).Error()
	}
	for _, f := range spec.filters {
		ff := filterField{Name: f.Name, Label: f.Label}
		for _, c := range f.Choices {
			c.Selected = snap.Filter[f.Name] == c.Value
			ff.Choices = append(ff.Choices, c)
		}
		d.Filters = append(d.Filters, ff)
	}
	if snap.Empty == "" {
		d.Table = spec.schema(ctx).Render(snap.Page.Rows, rowKey[R], snap.IsSelected)
		pg := snap.Page.Pagination
		d.Pagination = &pg
	}
	return d
}

func (spec tableSpec[R]) doSearch(s *Server) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		v := spec.view(s, ctx)
		opt := table.Option(ctx.FormValue("option"))
		if opt == "" {
			opt = spec.options.Default()
		}

		err := v.Search(ctx.Request().Context(), opt, ctx.FormValue("text"))
		var vErr *core.ValidationError
		if errors.As(err, &vErr) && !isXHR(ctx) {
			p := newPage(ctx, spec.title, spec.data(ctx, v.Snapshot()))
			p.Fields = fieldMap(vErr)
			p.Toast = &Toast{Kind: "error", Message: vErr.Error()}
			return ctx.Render(http.StatusBadRequest, "table", p)
		}
		if err != nil {
			return err
		}
		return done(ctx, spec.base, "")
	}
}

func (spec tableSpec[R]) resetSearch(s *Server) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		spec.view(s, ctx).ResetSearch()
		return done(ctx, spec.base, "")
	}
}

func (spec tableSpec[R]) setFilter(s *Server) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		f := make(table.Filter, len(spec.filters))
		for _, ff := range spec.filters {
			if val := ctx.FormValue(ff.Name); val != "" {
				f[ff.Name] = val
			}
		}
		v := spec.view(s, ctx)
		if f.IsEmpty() {
			v.ClearFilter()
			return done(ctx, spec.base, "")
		}
		if err := v.SetFilter(ctx.Request().Context(), f); err != nil {
			return err
		}
		return done(ctx, spec.base, "")
	}
}

func (spec tableSpec[R]) clearFilter(s *Server) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		spec.view(s, ctx).ClearFilter()
		return done(ctx, spec.base, "")
	}
}

func (spec tableSpec[R]) toggle(s *Server) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, err := spec.view(s, ctx).Toggle(ctx.FormValue("key")); err != nil {
			return err
		}
		return done(ctx, spec.base, "")
	}
}

func (spec tableSpec[R]) selectAll(s *Server) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		spec.view(s, ctx).SelectAll()
		return done(ctx, spec.base, "")
	}
}

func (spec tableSpec[R]) clearSelection(s *Server) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		spec.view(s, ctx).RemoveSelectAll()
		return done(ctx, spec.base, "")
	}
}

// refetch reloads the displayed page after a mutation, ignoring superseded loads.
func refetch[R any](ctx context.Context, v *table.View[R]) error {
	if err := v.Refetch(ctx); err != nil && errors.Cause(err) != table.ErrSuperseded {
		return err
	}
	return nil
}
