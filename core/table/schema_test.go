package table

import (
	"fmt"
	"html/template"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lesson struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Series   int        `json:"seriesNumber"`
	StartsAt time.Time  `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
	secret   string
	Internal string `json:"-"`
}

func TestSchema_Render(t *testing.T) {
	start := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	rows := []lesson{
		{ID: "l1", Name: "<b>Algebra</b>", Series: 1, StartsAt: start},
		{ID: "l2", Name: "Physics", Series: 2, StartsAt: start},
	}

	schema := Schema[lesson]{
		Order: []string{"name", "unknown", "startsAt"},
		Columns: map[string]Column[lesson]{
			"id":           {Hidden: true},
			"seriesNumber": {Label: "#", Width: "40px"},
		},
	}

	out := schema.Render(rows, func(l lesson) string { return l.ID }, func(k string) bool { return k == "l2" })

	require.Len(t, out.Headers, 4)
	assert.Equal(t, []Header{
		{Field: "name", Label: "Name"},
		{Field: "startsAt", Label: "Starts At"},
		{Field: "seriesNumber", Label: "#", Width: "40px"},
		{Field: "endsAt", Label: "Ends At"},
	}, out.Headers)

	require.Len(t, out.Rows, 2)
	r := out.Rows[0]
	assert.Equal(t, "l1", r.Key)
	assert.False(t, r.Selected)
	assert.True(t, out.Rows[1].Selected)
	assert.Equal(t, template.HTML("&lt;b&gt;Algebra&lt;/b&gt;"), r.Cells[0].Content)
	assert.Equal(t, template.HTML("2024-03-05 14:30"), r.Cells[1].Content)
	assert.Equal(t, template.HTML("1"), r.Cells[2].Content)
	assert.Equal(t, "40px", r.Cells[2].Width)
	assert.Equal(t, template.HTML(""), r.Cells[3].Content, "nil pointer renders empty")
	assert.Nil(t, r.Menu)
	assert.Empty(t, r.Link)
}

func TestSchema_RenderCustom(t *testing.T) {
	rows := []lesson{{ID: "l1", Name: "Algebra", Series: 1}, {ID: "l2", Name: "Physics", Series: 2}}

	base := Schema[lesson]{Columns: map[string]Column[lesson]{"id": {Hidden: true}}}
	schema := base.
		WithColumn("name", Column[lesson]{Render: func(value any, row lesson, index int) template.HTML {
			return template.HTML(fmt.Sprintf("<em>%d. %s</em>", index+1, template.HTMLEscapeString(value.(string))))
		}}).
		WithLink(func(l lesson) string { return "/lessons/" + l.ID }).
		WithCustomAction(CustomAction[lesson]{
			When:   func(l lesson) bool { return l.Series == 2 },
			Action: func(l lesson) Action { return Action{Label: "Join", Href: "/join/" + l.ID, Method: "POST"} },
		}).
		WithActions(func(l lesson) []Action {
			return []Action{{Label: "Delete", Href: "/lessons/" + l.ID, Method: "DELETE", Confirm: "Delete?"}}
		})

	out := schema.Render(rows, nil, nil)
	assert.Equal(t, template.HTML("<em>2. Physics</em>"), out.Rows[1].Cells[0].Content)
	assert.Equal(t, "/lessons/l1", out.Rows[0].Link)
	assert.Empty(t, out.Rows[0].Custom)
	assert.Equal(t, []Action{{Label: "Join", Href: "/join/l2", Method: "POST"}}, out.Rows[1].Custom)
	assert.Len(t, out.Rows[0].Menu, 1)
	assert.Empty(t, out.Rows[0].Key)

	// the base schema is untouched
	plain := base.Render(rows, nil, nil)
	assert.Equal(t, template.HTML("Algebra"), plain.Rows[0].Cells[0].Content)
	assert.Nil(t, plain.Rows[0].Menu)
	assert.Empty(t, plain.Rows[0].Link)
	assert.Empty(t, plain.Rows[1].Custom)
	assert.Len(t, base.Columns, 1)

	// nil actions suppress the menu
	out = schema.WithActions(nil).Render(rows, nil, nil)
	assert.Nil(t, out.Rows[0].Menu)
}

func TestSchema_RenderEmpty(t *testing.T) {
	out := Schema[lesson]{}.Render(nil, nil, nil)
	assert.Len(t, out.Headers, 5)
	assert.Empty(t, out.Rows)
}

func TestSchema_RenderMaps(t *testing.T) {
	rows := []map[string]any{{"b": 2, "a": "x"}}
	out := Schema[map[string]any]{}.Render(rows, nil, nil)
	assert.Equal(t, []Header{{Field: "a", Label: "A"}, {Field: "b", Label: "B"}}, out.Headers)
	assert.Equal(t, template.HTML("x"), out.Rows[0].Cells[0].Content)
}

func TestStringify(t *testing.T) {
	s := "ptr"
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "ptr", Stringify(&s))
	assert.Equal(t, "", Stringify(time.Time{}))
	assert.Equal(t, "admin:, student:", Stringify([]string{"admin:", "student:"}))
	assert.Equal(t, "true", Stringify(true))
}

func TestExportFilename(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("WAT", 3600))
	assert.Equal(t, "users-20240102-020405.csv", ExportFilename("users", ".csv", at))

	exp := NewExport("users", "zip", []byte("PK"), at)
	assert.Equal(t, "users-20240102-020405.zip", exp.Filename)
	assert.Equal(t, "application/zip", exp.ContentType)
	assert.Equal(t, "text/csv; charset=utf-8", ContentTypeFor("CSV"))
}
