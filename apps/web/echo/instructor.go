package echoweb

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo/portal/core/catalog"
	"github.com/trezcool/masomo/portal/core/table"
	"github.com/trezcool/masomo/portal/services/backend"
)

// now is replaced in tests.
var now = time.Now

var classesTable = tableSpec[catalog.ScheduleEntry]{
	name:  "classes",
	title: "Classes",
	base:  "/instructor/classes",
	fetch: func(c *backend.Client) table.FetchFunc[catalog.ScheduleEntry] { return c.Schedule },
	schema: func(echo.Context) table.Schema[catalog.ScheduleEntry] {
		t := now()
		return table.Schema[catalog.ScheduleEntry]{
			Order: []string{"courseName", "seriesNumber", "startsAt", "endsAt"},
			Columns: map[string]table.Column[catalog.ScheduleEntry]{
				"scheduleId":   {Hidden: true},
				"courseId":     {Hidden: true},
				"meetingUrl":   {Hidden: true},
				"seriesNumber": {Label: "Series"},
			},
		}.WithCustomAction(table.CustomAction[catalog.ScheduleEntry]{
			When: func(e catalog.ScheduleEntry) bool { return e.IsLive(t) },
			Action: func(e catalog.ScheduleEntry) table.Action {
				return table.Action{Label: "Join", Href: e.MeetingURL}
			},
		})
	},
}

func registerInstructor(s *Server, g *echo.Group) {
	classesTable.register(s, g, "/classes")
}
