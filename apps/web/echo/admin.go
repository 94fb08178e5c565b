package echoweb

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/billing"
	"github.com/trezcool/masomo/portal/core/catalog"
	"github.com/trezcool/masomo/portal/core/certificate"
	"github.com/trezcool/masomo/portal/core/table"
	"github.com/trezcool/masomo/portal/core/user"
	"github.com/trezcool/masomo/portal/services/backend"
)

var (
	usersTable = tableSpec[user.Summary]{
		name:  "users",
		title: "Users",
		base:  "/admin/users",
		fetch: func(c *backend.Client) table.FetchFunc[user.Summary] { return c.Users },
		filter: func(c *backend.Client) table.FilterFunc[user.Summary] {
			return c.FilterUsers
		},
		search:  func(c *backend.Client) table.SearchFunc[user.Summary] { return c.SearchUsers },
		options: table.UserSearchOptions,
		filters: []filterField{
			{Name: "role", Label: "Role", Choices: roleChoices()},
			{Name: "isActive", Label: "Status", Choices: []choice{
				{Value: "true", Label: "Active"},
				{Value: "false", Label: "Inactive"},
			}},
		},
		schema: func(echo.Context) table.Schema[user.Summary] {
			return table.Schema[user.Summary]{
				Order: []string{"firstName", "lastName", "email"},
				Columns: map[string]table.Column[user.Summary]{
					"userId": {Hidden: true},
					"roles":  {Render: renderRoles},
				},
			}
		},
		selectable: true,
		bulk: []table.Action{
			{Label: "Export", Href: "/admin/users/export", Method: http.MethodPost},
			{Label: "Issue certificates", Href: "/admin/certificates/issue", Method: http.MethodGet},
			{Label: "Delete", Href: "/admin/users/delete", Method: http.MethodPost, Confirm: "Delete the selected users?"},
		},
	}

	bundlesTable = tableSpec[catalog.Bundle]{
		name:    "bundles",
		title:   "Bundles",
		base:    "/admin/bundles",
		fetch:   func(c *backend.Client) table.FetchFunc[catalog.Bundle] { return c.Bundles },
		search:  func(c *backend.Client) table.SearchFunc[catalog.Bundle] { return c.SearchBundles },
		options: table.TitleSearchOptions,
		schema: func(echo.Context) table.Schema[catalog.Bundle] {
			return table.Schema[catalog.Bundle]{
				Order: []string{"name", "price"},
				Columns: map[string]table.Column[catalog.Bundle]{
					"bundleId":  {Hidden: true},
					"courseIds": {Label: "Courses", Render: renderCount},
					"price":     {Render: renderPrice[catalog.Bundle]},
				},
			}.WithActions(func(b catalog.Bundle) []table.Action {
				return []table.Action{{
					Label:   "Delete",
					Href:    "/admin/bundles/" + url.PathEscape(b.ID) + "/delete",
					Method:  http.MethodPost,
					Confirm: fmt.Sprintf("Delete the bundle %q?", b.Name),
				}}
			})
		},
	}

	transactionsTable = tableSpec[billing.Transaction]{
		name:    "transactions",
		title:   "Transactions",
		base:    "/admin/transactions",
		fetch:   func(c *backend.Client) table.FetchFunc[billing.Transaction] { return c.Transactions },
		search:  func(c *backend.Client) table.SearchFunc[billing.Transaction] { return c.SearchTransactions },
		options: table.TransactionSearchOptions,
		schema: func(echo.Context) table.Schema[billing.Transaction] {
			return table.Schema[billing.Transaction]{
				Order: []string{"transactionId", "userName", "itemName", "amount", "method"},
				Columns: map[string]table.Column[billing.Transaction]{
					"userId":                {Hidden: true},
					"transactionId":         {Label: "Transaction ID"},
					"providerTransactionId": {Label: "Provider ID"},
					"amount":                {Render: renderPrice[billing.Transaction]},
				},
			}
		},
	}

	certificatesTable = tableSpec[certificate.Certificate]{
		name:  "certificates",
		title: "Certificates",
		base:  "/admin/certificates",
		fetch: func(c *backend.Client) table.FetchFunc[certificate.Certificate] { return c.Certificates },
		schema: func(echo.Context) table.Schema[certificate.Certificate] {
			return table.Schema[certificate.Certificate]{
				Order: []string{"userName", "courseName", "issuedAt"},
				Columns: map[string]table.Column[certificate.Certificate]{
					"certificateId": {Hidden: true},
					"userId":        {Hidden: true},
					"url":           {Hidden: true},
				},
			}.WithLink(func(c certificate.Certificate) string { return c.URL })
		},
	}
)

func registerAdmin(s *Server, g *echo.Group) {
	usersTable.register(s, g, "/users")
	g.POST("/users/export", s.exportUsers)
	g.POST("/users/delete", s.deleteUsers)

	bundlesTable.register(s, g, "/bundles")
	g.POST("/bundles/:id/delete", s.deleteBundle)

	transactionsTable.register(s, g, "/transactions")

	certificatesTable.register(s, g, "/certificates")
	g.GET("/certificates/issue", s.issuePage)
	g.POST("/certificates/issue", s.issueCertificates)
}

func roleChoices() []choice {
	choices := make([]choice, 0, len(user.Roles))
	for _, r := range user.Roles {
		choices = append(choices, choice{Value: r.Value, Label: r.Name})
	}
	return choices
}

func renderRoles(value any, _ user.Summary, _ int) template.HTML {
	roles, _ := value.([]string)
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		for _, r := range user.Roles {
			if r.Value == role {
				role = r.Name
				break
			}
		}
		names = append(names, template.HTMLEscapeString(role))
	}
	return template.HTML(strings.Join(names, ", "))
}

func renderCount(value any, _ catalog.Bundle, _ int) template.HTML {
	ids, _ := value.([]string)
	return template.HTML(fmt.Sprintf("%d", len(ids)))
}

// renderPrice shows an amount in minor units as a decimal.
func renderPrice[R any](value any, _ R, _ int) template.HTML {
	amount, _ := value.(int64)
	return template.HTML(fmt.Sprintf("%d.%02d", amount/100, amount%100))
}

func (s *Server) exportUsers(ctx echo.Context) error {
	ids := usersTable.view(s, ctx).Snapshot().Selected
	if len(ids) == 0 {
		return core.NewValidationError(errors.New("select at least one user to export"))
	}
	exp, err := s.client(ctx).ExportUsers(ctx.Request().Context(), ids)
	if err != nil {
		return errors.Wrap(err, "exporting users")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", exp.Filename))
	return ctx.Blob(http.StatusOK, exp.ContentType, exp.Content)
}

func (s *Server) deleteUsers(ctx echo.Context) error {
	v := usersTable.view(s, ctx)
	ids := v.Snapshot().Selected
	if len(ids) == 0 {
		return core.NewValidationError(errors.New("select at least one user to delete"))
	}
	reqCtx := ctx.Request().Context()
	if err := s.client(ctx).DeleteUsers(reqCtx, ids); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	v.RemoveSelectAll()
	if err := refetch(reqCtx, v); err != nil {
		return err
	}
	return done(ctx, usersTable.base, fmt.Sprintf("%d users deleted.", len(ids)))
}

func (s *Server) deleteBundle(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	if err := s.client(ctx).DeleteBundle(reqCtx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting bundle")
	}
	if err := refetch(reqCtx, bundlesTable.view(s, ctx)); err != nil {
		return err
	}
	return done(ctx, bundlesTable.base, "Bundle deleted.")
}

type issueData struct {
	Users   []user.Summary
	Courses []catalog.Course
	Course  string
}

// issuePage lists the users selected on the users page and the courses to certify.
func (s *Server) issuePage(ctx echo.Context) error {
	data, err := s.issueData(ctx)
	if err != nil {
		return err
	}
	return render(ctx, http.StatusOK, "issue", "Issue certificates", data)
}

func (s *Server) issueData(ctx echo.Context) (issueData, error) {
	courses, err := s.client(ctx).Courses(ctx.Request().Context(), 1)
	if err != nil {
		return issueData{}, errors.Wrap(err, "loading courses")
	}
	return issueData{
		Users:   usersTable.view(s, ctx).SelectedRows(),
		Courses: courses.Rows,
	}, nil
}

func (s *Server) issueCertificates(ctx echo.Context) error {
	v := usersTable.view(s, ctx)
	issue := certificate.Issue{UserIDs: v.Snapshot().Selected, CourseID: ctx.FormValue("courseId")}
	if err := s.Validate.Struct(issue); err != nil {
		flds := core.FieldErrors(err, s.Translator)
		if flds == nil || isXHR(ctx) {
			return err
		}
		data, dErr := s.issueData(ctx)
		if dErr != nil {
			return dErr
		}
		data.Course = issue.CourseID
		p := newPage(ctx, "Issue certificates", data)
		p.Fields = flds
		return ctx.Render(http.StatusBadRequest, "issue", p)
	}

	if err := s.client(ctx).IssueCertificates(ctx.Request().Context(), issue); err != nil {
		return errors.Wrap(err, "issuing certificates")
	}
	v.RemoveSelectAll()
	return done(ctx, certificatesTable.base, fmt.Sprintf("%d certificates issued.", len(issue.UserIDs)))
}
