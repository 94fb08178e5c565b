package table

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{people: makePeople(30), size: 10}
	c := NewCursor(fb.fetch, 10)

	require.NoError(t, c.Refetch(ctx))
	assert.Equal(t, 1, c.Current().Pagination.CurrentPage)
	assert.False(t, c.Current().Pagination.HasPrev())

	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.Next(ctx))
	assert.Equal(t, 3, c.Current().Pagination.CurrentPage)
	assert.False(t, c.Current().Pagination.HasNext())

	// next on the last page stays there
	require.NoError(t, c.Next(ctx))
	assert.Equal(t, 3, c.Current().Pagination.CurrentPage)

	require.NoError(t, c.Prev(ctx))
	assert.Equal(t, "u11", c.Current().Rows[0].ID)
	assert.False(t, c.Loading())
	assert.Equal(t, []int{1, 2, 3, 3, 2}, fb.fetches)
}

func TestCursor_failure(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{people: makePeople(30), size: 10}
	c := NewCursor(fb.fetch, 10)
	require.NoError(t, c.SetPage(ctx, 2))

	fb.failNext = errors.New("timeout")
	assert.EqualError(t, c.SetPage(ctx, 3), "timeout")
	assert.Equal(t, 2, c.Current().Pagination.CurrentPage)
	assert.Len(t, c.Current().Rows, 10)
	assert.EqualError(t, c.Err(), "timeout")
	assert.False(t, c.Loading())
}

func TestCursor_rejectsBrokenPage(t *testing.T) {
	tests := []struct {
		name      string
		page      Page[person]
		wantCalls int
	}{
		{
			name:      "page past the last one, even after reloading the last",
			page:      Page[person]{Rows: makePeople(3), Pagination: Pagination{CurrentPage: 4, TotalPages: 2, PageSize: 3, TotalCount: 6}},
			wantCalls: 2,
		},
		{
			name:      "more rows than the page size",
			page:      Page[person]{Rows: makePeople(5), Pagination: Pagination{CurrentPage: 1, TotalPages: 2, PageSize: 3, TotalCount: 6}},
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			c := NewCursor(func(_ context.Context, page int) (Page[person], error) {
				calls++
				return tt.page, nil
			}, 3)
			err := c.SetPage(context.Background(), tt.page.Pagination.CurrentPage)
			assert.Equal(t, ErrBrokenPage, errors.Cause(err))
			assert.True(t, c.Current().IsEmpty())
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestCursor_lastPageGone(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{people: makePeople(30), size: 25}
	c := NewCursor(fb.fetch, 25)
	require.NoError(t, c.SetPage(ctx, 2))
	assert.Len(t, c.Current().Rows, 5)

	fb.people = fb.people[:25]
	require.NoError(t, c.Refetch(ctx))
	assert.Equal(t, 1, c.Current().Pagination.CurrentPage)
	assert.Len(t, c.Current().Rows, 25)
	assert.Equal(t, []int{2, 2, 1}, fb.fetches)
}

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		name string
		page Page[person]
		want Pagination
	}{
		{
			name: "missing metadata",
			page: Page[person]{Rows: makePeople(4)},
			want: Pagination{CurrentPage: 1, TotalPages: 1, PageSize: 25, TotalCount: 4},
		},
		{
			name: "more rows than fallback size",
			page: Page[person]{Rows: makePeople(30)},
			want: Pagination{CurrentPage: 1, TotalPages: 1, PageSize: 30, TotalCount: 30},
		},
		{
			name: "complete metadata kept",
			page: Page[person]{Rows: makePeople(2), Pagination: Pagination{CurrentPage: 3, TotalPages: 3, PageSize: 10, TotalCount: 22}},
			want: Pagination{CurrentPage: 3, TotalPages: 3, PageSize: 10, TotalCount: 22},
		},
		{
			name: "empty",
			page: Page[person]{},
			want: Pagination{CurrentPage: 1, PageSize: 25},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.page.Normalize(25)
			assert.Equal(t, tt.want, tt.page.Pagination)
			assert.NoError(t, tt.page.Check())
			assert.NotNil(t, tt.page.Rows)
		})
	}
}

func TestPagination_ClampPage(t *testing.T) {
	pg := Pagination{CurrentPage: 1, TotalPages: 4}
	assert.Equal(t, 1, pg.ClampPage(-2))
	assert.Equal(t, 3, pg.ClampPage(3))
	assert.Equal(t, 4, pg.ClampPage(10))
	assert.Equal(t, 1, Pagination{}.ClampPage(5))
}
