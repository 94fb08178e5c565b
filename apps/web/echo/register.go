package echoweb

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core/form"
	"github.com/trezcool/masomo/portal/core/user"
)

// registrationCookie identifies an anonymous visitor filling in the sign-up form.
const registrationCookie = "masomo_reg"

func registerRegistration(s *Server, g *echo.Group) {
	g.GET("", s.registrationPage)
	g.POST("/next", s.registrationNext)
	g.POST("/back", s.registrationBack)
	g.POST("/submit", s.registrationSubmit)
}

type registerData struct {
	Steps   []string
	Index   int
	IsFirst bool
	IsLast  bool
	Locked  bool // submit is disabled while any step has errors
	Account *user.AccountStep
	Profile *user.ProfileStep
	Review  *user.ReviewStep
}

// registrationKey returns the workspace key of the visitor, issuing a cookie on first visit.
func (s *Server) registrationKey(ctx echo.Context) string {
	if c, err := ctx.Cookie(registrationCookie); err == nil && c.Value != "" {
		return "reg:" + c.Value
	}
	id := uuid.NewString()
	ctx.SetCookie(&http.Cookie{
		Name:     registrationCookie,
		Value:    id,
		Path:     "/register",
		HttpOnly: true,
		Secure:   s.Conf.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return "reg:" + id
}

// registration returns the visitor's form locked for the request; callers must call unlock.
func (s *Server) registration(ctx echo.Context) (f *user.RegistrationForm, key string, unlock func()) {
	key = s.registrationKey(ctx)
	ws := s.spaces.get(key)
	f = ws.registration(func() *user.RegistrationForm {
		return user.NewRegistrationForm(s.Validate, s.Translator)
	})
	ws.formMu.Lock()
	return f, key, ws.formMu.Unlock
}

func (s *Server) renderRegistration(ctx echo.Context, code int, f *user.RegistrationForm) error {
	data := registerData{
		Index:   f.Index(),
		IsFirst: f.IsFirst(),
		IsLast:  f.IsLast(),
		Locked:  f.HasErrors(),
		Account: f.Account,
		Profile: f.Profile,
		Review:  f.Review,
	}
	for i := 0; i < f.Len(); i++ {
		st, _ := f.Step(i)
		data.Steps = append(data.Steps, st.Name)
	}
	if isXHR(ctx) {
		return ctx.JSON(code, echo.Map{
			"step":   f.Current().Name,
			"index":  data.Index,
			"locked": data.Locked,
			"fields": f.Errors(),
		})
	}
	p := newPage(ctx, "Sign up", data)
	p.Fields = f.Errors()
	return ctx.Render(code, "register", p)
}

func (s *Server) registrationPage(ctx echo.Context) error {
	f, _, unlock := s.registration(ctx)
	defer unlock()
	return s.renderRegistration(ctx, http.StatusOK, f)
}

// registrationNext binds the posted fields into the current step and advances
// when they are valid.
func (s *Server) registrationNext(ctx echo.Context) error {
	f, _, unlock := s.registration(ctx)
	defer unlock()
	if f.Submitted() {
		return form.ErrSubmitted
	}
	if err := s.bindStep(ctx, f); err != nil {
		return err
	}
	err := f.Next()
	if errors.Cause(err) == form.ErrInvalidStep {
		return s.renderRegistration(ctx, http.StatusBadRequest, f)
	}
	if err != nil {
		return err
	}
	return s.renderRegistration(ctx, http.StatusOK, f)
}

func (s *Server) bindStep(ctx echo.Context, f *user.RegistrationForm) error {
	var err error
	switch step := f.Current().Step.(type) {
	case *user.ReviewStep:
		// an unchecked box is not posted at all
		step.AcceptTerms = ctx.FormValue("acceptTerms") == "true"
	default:
		err = ctx.Bind(step)
	}
	return errors.Wrap(err, "binding registration step")
}

func (s *Server) registrationBack(ctx echo.Context) error {
	f, _, unlock := s.registration(ctx)
	defer unlock()
	if f.Submitted() {
		return form.ErrSubmitted
	}
	f.Back()
	return s.renderRegistration(ctx, http.StatusOK, f)
}

// registrationSubmit validates every step and posts the registration.
// The form is discarded once the backend accepts it.
func (s *Server) registrationSubmit(ctx echo.Context) error {
	f, key, unlock := s.registration(ctx)
	defer unlock()
	if f.IsLast() {
		if err := s.bindStep(ctx, f); err != nil {
			return err
		}
	}
	err := f.Submit(func() error {
		return s.client(ctx).Register(ctx.Request().Context(), f.Registration())
	})
	if errors.Cause(err) == form.ErrInvalidStep {
		return s.renderRegistration(ctx, http.StatusBadRequest, f)
	}
	if err != nil {
		return errors.Wrap(err, "registering")
	}

	s.spaces.drop(key)
	ctx.SetCookie(&http.Cookie{Name: registrationCookie, Path: "/register", MaxAge: -1})
	s.Logger.Info("new registration")
	return done(ctx, "/login", "Your account has been created, you may now log in.")
}
