package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/core/session"
)

type loginRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// authMiddleware resolves the session of the auth cookie and stores it in
// the request context. Requests without a valid session are rejected.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sess, err := s.resolve(ctx)
		if err != nil {
			return err
		}
		ctx.SetRequest(ctx.Request().WithContext(session.NewContext(ctx.Request().Context(), sess)))
		return next(ctx)
	}
}

// optionalAuthMiddleware is authMiddleware for pages open to visitors.
func (s *Server) optionalAuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if sess, err := s.resolve(ctx); err == nil {
			ctx.SetRequest(ctx.Request().WithContext(session.NewContext(ctx.Request().Context(), sess)))
		}
		return next(ctx)
	}
}

func (s *Server) resolve(ctx echo.Context) (*session.Session, error) {
	cookie, err := ctx.Cookie(s.Conf.Server.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, session.ErrUnauthenticated
	}
	sess, err := s.Sessions.Resolve(ctx.Request().Context(), cookie.Value)
	if err != nil {
		if cause := errors.Cause(err); cause == session.ErrUnauthenticated || cause == session.ErrTokenExpired {
			s.clearCookie(ctx)
			s.spaces.drop(cookie.Value)
		}
		return nil, err
	}
	return sess, nil
}

func panelMiddleware(panel session.Panel) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, ok := session.FromContext(ctx.Request().Context())
			if !ok {
				return session.ErrUnauthenticated
			}
			if !sess.CanAccess(panel) {
				return session.ErrForbidden
			}
			return next(ctx)
		}
	}
}

func (s *Server) loginPage(ctx echo.Context) error {
	if sess, ok := session.FromContext(ctx.Request().Context()); ok {
		return s.redirectToPanel(ctx, sess)
	}
	return render(ctx, http.StatusOK, "login", "Log in", "")
}

func (s *Server) login(ctx echo.Context) error {
	var data loginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to loginRequest")
	}

	sess, err := s.Sessions.Login(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) && !isXHR(ctx) {
			p := newPage(ctx, "Log in", data.Username)
			p.Fields = fieldMap(vErr)
			return ctx.Render(http.StatusBadRequest, "login", p)
		}
		return err
	}

	cookie := &http.Cookie{
		Name:     s.Conf.Server.CookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Conf.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if !sess.ExpiresAt.IsZero() {
		cookie.Expires = sess.ExpiresAt
	}
	ctx.SetCookie(cookie)
	s.Logger.Info("logged in", sess)
	return s.redirectToPanel(ctx, sess)
}

// logout cancels a pending checkout, drops the session's workspace and
// clears the auth cookie.
func (s *Server) logout(ctx echo.Context) error {
	sess, _ := session.FromContext(ctx.Request().Context())
	if ws, ok := s.spaces.peek(sess.Token); ok {
		ws.mu.Lock()
		flow := ws.flow
		ws.mu.Unlock()
		if flow != nil && flow.Status().State == enrollment.StateAwaitingPayment {
			if err := flow.Cancel(ctx.Request().Context()); err != nil {
				// the sweeper will compensate it
				s.Logger.Warn("cancelling checkout on logout", err, sess)
			}
		}
	}
	s.spaces.drop(sess.Token)
	s.Sessions.Logout(sess)
	s.clearCookie(ctx)
	setFlash(ctx, "info", "You have been logged out.")
	return ctx.Redirect(http.StatusSeeOther, "/login")
}

func (s *Server) clearCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     s.Conf.Server.CookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Conf.Server.CookieSecure,
	})
}

// fieldMap returns the field errors of vErr for inline display; errors not
// tied to a field are shown under "form".
func fieldMap(vErr *core.ValidationError) map[string]string {
	flds := make(map[string]string, len(vErr.Fields)+1)
	for _, f := range vErr.Fields {
		flds[f.Field] = f.Error
	}
	if len(flds) == 0 {
		flds["form"] = vErr.Error()
	}
	return flds
}
