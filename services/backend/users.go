package backend

import (
	"context"
	"strings"
	"time"

	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo/portal/core/table"
	"github.com/trezcool/masomo/portal/core/user"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type idsBody struct {
	UserIDs []string `json:"userIds"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, call{
		endpoint: "users.login",
		method:   rest.Post,
		path:     "/users/login",
		body:     credentials{Username: username, Password: password},
	}, &out)
	return out.Token, err
}

// Me returns the user owning token.
func (c *Client) Me(ctx context.Context, token string) (user.Me, error) {
	var me user.Me
	err := c.WithToken(token).do(ctx, call{endpoint: "users.me", method: rest.Get, path: "/users/me"}, &me)
	return me, err
}

func (c *Client) Users(ctx context.Context, page int) (table.Page[user.Summary], error) {
	return list[user.Summary](ctx, c, call{endpoint: "users.list", method: rest.Get, path: "/users"}, "users", page)
}

func (c *Client) FilterUsers(ctx context.Context, f table.Filter, page int) (table.Page[user.Summary], error) {
	query := make(map[string]string, len(f))
	for k, v := range f {
		query[k] = v
	}
	return list[user.Summary](ctx, c, call{endpoint: "users.filter", method: rest.Get, path: "/users", query: query}, "users", page)
}

func (c *Client) SearchUsers(ctx context.Context, q table.Query, page int) (table.Page[user.Summary], error) {
	return list[user.Summary](ctx, c, call{endpoint: "users.search", method: rest.Post, path: "/users/search", body: q}, "users", page)
}

func (c *Client) DeleteUsers(ctx context.Context, ids []string) error {
	return c.do(ctx, call{endpoint: "users.delete", method: rest.Post, path: "/users/delete", body: idsBody{UserIDs: ids}}, nil)
}

// ExportUsers downloads the selected users as CSV (or a ZIP archive of CSVs).
func (c *Client) ExportUsers(ctx context.Context, ids []string) (table.Export, error) {
	content, contentType, err := c.raw(ctx, call{
		endpoint: "users.export",
		method:   rest.Post,
		path:     "/users/export",
		body:     idsBody{UserIDs: ids},
	})
	if err != nil {
		return table.Export{}, err
	}
	ext := "csv"
	if strings.Contains(contentType, "zip") {
		ext = "zip"
	}
	return table.NewExport("users", ext, content, time.Now()), nil
}

func (c *Client) Register(ctx context.Context, r user.Registration) error {
	return c.do(ctx, call{endpoint: "users.register", method: rest.Post, path: "/users/register", body: r}, nil)
}
