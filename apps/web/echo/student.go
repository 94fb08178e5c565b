package echoweb

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core/billing"
	"github.com/trezcool/masomo/portal/core/catalog"
	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/table"
	"github.com/trezcool/masomo/portal/services/backend"
)

var (
	studentCoursesTable = tableSpec[catalog.Course]{
		name:    "student-courses",
		title:   "Courses",
		base:    "/student/courses",
		fetch:   func(c *backend.Client) table.FetchFunc[catalog.Course] { return c.Courses },
		search:  func(c *backend.Client) table.SearchFunc[catalog.Course] { return c.SearchCourses },
		options: table.TitleSearchOptions,
		schema: func(echo.Context) table.Schema[catalog.Course] {
			return table.Schema[catalog.Course]{
				Order: []string{"name", "instructor", "startsOn", "price"},
				Columns: map[string]table.Column[catalog.Course]{
					"courseId":    {Hidden: true},
					"isPublished": {Hidden: true},
					"acceptsCash": {Label: "Cash"},
					"price":       {Render: renderPrice[catalog.Course]},
				},
			}.WithCustomAction(table.CustomAction[catalog.Course]{
				When: func(c catalog.Course) bool { return c.IsPublished },
				Action: func(c catalog.Course) table.Action {
					return table.Action{Label: "Enroll", Href: "/student/enroll/" + url.PathEscape(c.ID)}
				},
			})
		},
	}

	studentBundlesTable = tableSpec[catalog.Bundle]{
		name:    "student-bundles",
		title:   "Bundles",
		base:    "/student/bundles",
		fetch:   func(c *backend.Client) table.FetchFunc[catalog.Bundle] { return c.Bundles },
		search:  func(c *backend.Client) table.SearchFunc[catalog.Bundle] { return c.SearchBundles },
		options: table.TitleSearchOptions,
		schema: func(echo.Context) table.Schema[catalog.Bundle] {
			return table.Schema[catalog.Bundle]{
				Order: []string{"name", "price"},
				Columns: map[string]table.Column[catalog.Bundle]{
					"bundleId":  {Hidden: true},
					"createdAt": {Hidden: true},
					"courseIds": {Label: "Courses", Render: renderCount},
					"price":     {Render: renderPrice[catalog.Bundle]},
				},
			}.WithCustomAction(table.CustomAction[catalog.Bundle]{
				Action: func(b catalog.Bundle) table.Action {
					return table.Action{Label: "Enroll", Href: "/student/enroll/" + url.PathEscape(b.ID) + "?kind=bundle"}
				},
			})
		},
	}
)

func registerStudent(s *Server, g *echo.Group) {
	studentCoursesTable.register(s, g, "/courses")
	studentBundlesTable.register(s, g, "/bundles")

	g.GET("/enroll", s.enrollmentStatus)
	g.GET("/enroll/:id", s.confirmEnrollment)
	g.POST("/enroll/back", s.leaveEnrollment)
	g.POST("/enroll/cash", s.payCash)
	g.POST("/enroll/credit", s.payCredit)
	// the provider redirects back with GET
	g.Match([]string{http.MethodGet, http.MethodPost}, "/enroll/approve", s.approvePayment)
	g.Match([]string{http.MethodGet, http.MethodPost}, "/enroll/cancel", s.cancelEnrollment)
}

const enrollPath = "/student/enroll"

// flow returns the enrollment flow of the session, acting as the session's user.
func (s *Server) flow(ctx echo.Context) (*enrollment.Flow, error) {
	ws := s.workspace(ctx)
	var buildErr error
	f := ws.enrollment(func() *enrollment.Flow {
		client := s.client(ctx)
		gw, err := s.Gateway(client)
		if err != nil {
			buildErr = err
			return nil
		}
		sess, _ := session.FromContext(ctx.Request().Context())
		return enrollment.NewFlow(enrollment.Deps{
			Backend:  client,
			Gateway:  gw,
			Journal:  s.Journal,
			Logger:   s.Logger,
			Currency: s.Conf.Payment.Currency,
		}, sess.User.ID)
	})
	if buildErr != nil {
		return nil, errors.Wrap(buildErr, "setting up payment gateway")
	}
	return f, nil
}

type enrollData struct {
	enrollment.Status
	Idle, Confirming, Awaiting, Done bool
	Error                            string
}

func (s *Server) renderFlow(ctx echo.Context, f *enrollment.Flow) error {
	st := f.Status()
	data := enrollData{
		Status:     st,
		Idle:       st.State == enrollment.StateIdle,
		Confirming: st.State == enrollment.StateConfirming,
		Awaiting:   st.State == enrollment.StateAwaitingPayment,
		Done:       st.State == enrollment.StateDone,
	}
	if st.Err != nil {
		data.Error = errors.Cause(st.Err).Error()
	}
	if isXHR(ctx) {
		return ctx.JSON(http.StatusOK, echo.Map{
			"state":       st.State.String(),
			"item":        st.Item,
			"orderId":     st.OrderID,
			"error":       data.Error,
			"transaction": st.Transaction,
		})
	}
	return render(ctx, http.StatusOK, "enroll", "Enrollment", data)
}

func (s *Server) enrollmentStatus(ctx echo.Context) error {
	f, err := s.flow(ctx)
	if err != nil {
		return err
	}
	return s.renderFlow(ctx, f)
}

// confirmEnrollment shows the confirmation of a course (or a bundle with ?kind=bundle).
// A checkout already awaiting payment is shown instead.
func (s *Server) confirmEnrollment(ctx echo.Context) error {
	f, err := s.flow(ctx)
	if err != nil {
		return err
	}
	switch f.Status().State {
	case enrollment.StateAwaitingPayment, enrollment.StateSubmitting:
		return s.renderFlow(ctx, f)
	}

	item, err := s.enrollable(ctx, ctx.QueryParam("kind"), ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = f.Confirm(item); err != nil {
		return err
	}
	return s.renderFlow(ctx, f)
}

func (s *Server) enrollable(ctx echo.Context, kind, id string) (catalog.Enrollable, error) {
	reqCtx := ctx.Request().Context()
	if kind == catalog.KindBundle {
		b, err := s.client(ctx).Bundle(reqCtx, id)
		return b.Enrollable(), errors.Wrap(err, "loading bundle")
	}
	c, err := s.client(ctx).Course(reqCtx, id)
	return c.Enrollable(), errors.Wrap(err, "loading course")
}

func (s *Server) leaveEnrollment(ctx echo.Context) error {
	f, err := s.flow(ctx)
	if err != nil {
		return err
	}
	if err = f.Back(); err != nil {
		return err
	}
	return done(ctx, studentCoursesTable.base, "")
}

func (s *Server) payCash(ctx echo.Context) error {
	f, err := s.flow(ctx)
	if err != nil {
		return err
	}
	if err = f.PayCash(ctx.Request().Context()); err != nil {
		return s.flowFailed(ctx, f, err)
	}
	return done(ctx, enrollPath, enrolledMessage(f.Status().Transaction))
}

func (s *Server) payCredit(ctx echo.Context) error {
	f, err := s.flow(ctx)
	if err != nil {
		return err
	}
	if _, err = f.PayCredit(ctx.Request().Context()); err != nil {
		return s.flowFailed(ctx, f, err)
	}
	return done(ctx, enrollPath, "")
}

func (s *Server) approvePayment(ctx echo.Context) error {
	f, err := s.flow(ctx)
	if err != nil {
		return err
	}
	if err = f.Approve(ctx.Request().Context(), ctx.FormValue("orderId")); err != nil {
		return s.flowFailed(ctx, f, err)
	}
	return done(ctx, enrollPath, enrolledMessage(f.Status().Transaction))
}

func (s *Server) cancelEnrollment(ctx echo.Context) error {
	f, err := s.flow(ctx)
	if err != nil {
		return err
	}
	if err = f.Cancel(ctx.Request().Context()); err != nil {
		return err
	}
	return done(ctx, studentCoursesTable.base, "Enrollment cancelled.")
}

// flowFailed reports a failed submission. The flow is back to idle with the
// error recorded; the user lands on the status page with an error toast.
func (s *Server) flowFailed(ctx echo.Context, f *enrollment.Flow, err error) error {
	if f.Status().Err != err || isXHR(ctx) {
		// rejected before anything was sent
		return err
	}
	setFlash(ctx, "error", errors.Cause(err).Error())
	return ctx.Redirect(http.StatusSeeOther, enrollPath)
}

func enrolledMessage(txn *billing.Transaction) string {
	if txn == nil {
		return "Enrolled."
	}
	return "Enrolled in " + txn.ItemName + "."
}
