package table

import (
	"fmt"
	"html/template"
	"reflect"
	"sort"
	"strings"
	"time"
)

const TimeLayout = "2006-01-02 15:04"

// RenderFunc renders one cell. value is the raw field value of row.
type RenderFunc[R any] func(value any, row R, index int) template.HTML

// Column holds the display directives of one field.
type Column[R any] struct {
	Label  string
	Hidden bool
	Width  string
	Render RenderFunc[R]
}

// Action is one inline control or menu entry of a row.
// Handlers are endpoints: the UI posts (or links) to Href with Method.
type Action struct {
	Label   string
	Href    string
	Method  string // GET when empty
	Confirm string // confirmation prompt, optional
}

// CustomAction is an inline control shown only when When holds for the row.
type CustomAction[R any] struct {
	When   func(row R) bool
	Action func(row R) Action
}

// Schema describes how rows of type R are projected into table rows.
// A Schema is a value: the With* methods return modified copies and never
// touch the receiver, so views can build one per request from their closures.
type Schema[R any] struct {
	Columns map[string]Column[R]
	// Order fixes the leading columns; other fields follow in declaration order.
	Order []string
	// Link wraps the whole row in a link when it returns a non-empty href.
	Link          func(row R) string
	CustomActions []CustomAction[R]
	// Actions builds the row's action menu; nil or empty suppresses it.
	Actions func(row R) []Action
}

func (s Schema[R]) clone() Schema[R] {
	cp := s
	cp.Columns = make(map[string]Column[R], len(s.Columns))
	for k, col := range s.Columns {
		cp.Columns[k] = col
	}
	cp.Order = append([]string(nil), s.Order...)
	cp.CustomActions = append([]CustomAction[R](nil), s.CustomActions...)
	return cp
}

func (s Schema[R]) WithColumn(field string, col Column[R]) Schema[R] {
	cp := s.clone()
	cp.Columns[field] = col
	return cp
}

func (s Schema[R]) WithActions(actions func(row R) []Action) Schema[R] {
	cp := s.clone()
	cp.Actions = actions
	return cp
}

func (s Schema[R]) WithLink(link func(row R) string) Schema[R] {
	cp := s.clone()
	cp.Link = link
	return cp
}

func (s Schema[R]) WithCustomAction(ca CustomAction[R]) Schema[R] {
	cp := s.clone()
	cp.CustomActions = append(cp.CustomActions, ca)
	return cp
}

type (
	Header struct {
		Field string
		Label string
		Width string
	}

	Cell struct {
		Field   string
		Content template.HTML
		Width   string
	}

	Row struct {
		Key      string
		Index    int
		Link     string
		Selected bool
		Cells    []Cell
		Custom   []Action
		Menu     []Action
	}

	// Rendered is a table ready for a template.
	Rendered struct {
		Headers []Header
		Rows    []Row
	}
)

// Render projects rows through the schema. key and selected may be nil.
func (s Schema[R]) Render(rows []R, key KeyFunc[R], selected func(key string) bool) Rendered {
	var out Rendered
	var fields []string
	if len(rows) > 0 {
		fields = s.orderedFields(fieldNames(rows[0]))
	} else {
		var zero R
		fields = s.orderedFields(fieldNames(zero))
	}

	for _, f := range fields {
		col := s.Columns[f]
		if col.Hidden {
			continue
		}
		label := col.Label
		if label == "" {
			label = humanize(f)
		}
		out.Headers = append(out.Headers, Header{Field: f, Label: label, Width: col.Width})
	}

	out.Rows = make([]Row, 0, len(rows))
	for i, row := range rows {
		values := fieldValues(row)
		r := Row{Index: i}
		if key != nil {
			r.Key = key(row)
			if selected != nil {
				r.Selected = selected(r.Key)
			}
		}
		for _, h := range out.Headers {
			col := s.Columns[h.Field]
			val := values[h.Field]
			var content template.HTML
			if col.Render != nil {
				content = col.Render(val, row, i)
			} else {
				content = template.HTML(template.HTMLEscapeString(Stringify(val)))
			}
			r.Cells = append(r.Cells, Cell{Field: h.Field, Content: content, Width: h.Width})
		}
		if s.Link != nil {
			r.Link = s.Link(row)
		}
		for _, ca := range s.CustomActions {
			if ca.Action != nil && (ca.When == nil || ca.When(row)) {
				r.Custom = append(r.Custom, ca.Action(row))
			}
		}
		if s.Actions != nil {
			r.Menu = s.Actions(row)
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// orderedFields puts Order first (skipping unknown fields), then the rest in discovery order.
func (s Schema[R]) orderedFields(discovered []string) []string {
	known := make(map[string]bool, len(discovered))
	for _, f := range discovered {
		known[f] = true
	}
	fields := make([]string, 0, len(discovered))
	placed := make(map[string]bool, len(discovered))
	for _, f := range s.Order {
		if known[f] && !placed[f] {
			fields = append(fields, f)
			placed[f] = true
		}
	}
	for _, f := range discovered {
		if !placed[f] {
			fields = append(fields, f)
		}
	}
	return fields
}

// Stringify is the default cell text of a value.
func Stringify(val any) string {
	if rv := reflect.ValueOf(val); rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		return Stringify(rv.Elem().Interface())
	}
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(TimeLayout)
	case []string:
		return strings.Join(v, ", ")
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(val)
}

// fieldNames lists the json names of a struct's exported fields in declaration
// order, or the sorted keys of a map.
func fieldNames(row any) []string {
	rv := reflect.ValueOf(row)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			rv = reflect.New(rv.Type().Elem()).Elem()
			break
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		rt := rv.Type()
		names := make([]string, 0, rt.NumField())
		for i := 0; i < rt.NumField(); i++ {
			if name, ok := jsonName(rt.Field(i)); ok {
				names = append(names, name)
			}
		}
		return names
	case reflect.Map:
		names := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			names = append(names, fmt.Sprint(k.Interface()))
		}
		sort.Strings(names)
		return names
	}
	return nil
}

func fieldValues(row any) map[string]any {
	rv := reflect.ValueOf(row)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	values := make(map[string]any)
	switch rv.Kind() {
	case reflect.Struct:
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			if name, ok := jsonName(rt.Field(i)); ok {
				values[name] = rv.Field(i).Interface()
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			values[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
		}
	}
	return values
}

func jsonName(fld reflect.StructField) (string, bool) {
	if !fld.IsExported() {
		return "", false
	}
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return "", false
	case "":
		return fld.Name, true
	}
	return name, true
}

// humanize turns "firstName" into "First Name".
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i == 0 {
			b.WriteString(strings.ToUpper(string(r)))
			continue
		}
		if r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
