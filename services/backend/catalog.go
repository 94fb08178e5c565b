package backend

import (
	"context"
	"net/url"

	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo/portal/core/catalog"
	"github.com/trezcool/masomo/portal/core/table"
)

func (c *Client) Courses(ctx context.Context, page int) (table.Page[catalog.Course], error) {
	return list[catalog.Course](ctx, c, call{endpoint: "courses.list", method: rest.Get, path: "/courses"}, "courses", page)
}

func (c *Client) SearchCourses(ctx context.Context, q table.Query, page int) (table.Page[catalog.Course], error) {
	return list[catalog.Course](ctx, c, call{endpoint: "courses.search", method: rest.Post, path: "/courses/search", body: q}, "courses", page)
}

func (c *Client) Course(ctx context.Context, id string) (catalog.Course, error) {
	var course catalog.Course
	err := c.do(ctx, call{endpoint: "courses.get", method: rest.Get, path: "/courses/" + url.PathEscape(id)}, &course)
	return course, err
}

func (c *Client) Bundles(ctx context.Context, page int) (table.Page[catalog.Bundle], error) {
	return list[catalog.Bundle](ctx, c, call{endpoint: "bundles.list", method: rest.Get, path: "/bundles"}, "bundles", page)
}

func (c *Client) SearchBundles(ctx context.Context, q table.Query, page int) (table.Page[catalog.Bundle], error) {
	return list[catalog.Bundle](ctx, c, call{endpoint: "bundles.search", method: rest.Post, path: "/bundles/search", body: q}, "bundles", page)
}

func (c *Client) Bundle(ctx context.Context, id string) (catalog.Bundle, error) {
	var bundle catalog.Bundle
	err := c.do(ctx, call{endpoint: "bundles.get", method: rest.Get, path: "/bundles/" + url.PathEscape(id)}, &bundle)
	return bundle, err
}

func (c *Client) DeleteBundle(ctx context.Context, id string) error {
	return c.do(ctx, call{endpoint: "bundles.delete", method: rest.Post, path: "/bundles/" + url.PathEscape(id) + "/delete"}, nil)
}

// Schedule lists the classes of the current instructor.
func (c *Client) Schedule(ctx context.Context, page int) (table.Page[catalog.ScheduleEntry], error) {
	return list[catalog.ScheduleEntry](ctx, c, call{endpoint: "schedule.list", method: rest.Get, path: "/schedule"}, "schedule", page)
}
