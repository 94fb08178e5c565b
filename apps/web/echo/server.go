package echoweb

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/services/backend"
)

// GatewayFunc returns the payment gateway acting for client's principal.
type GatewayFunc func(client *backend.Client) (enrollment.Gateway, error)

type ServerDeps struct {
	Conf       *core.Config
	Logger     core.Logger
	Backend    *backend.Client
	Sessions   *session.Manager
	Journal    enrollment.Journal
	Gateway    GatewayFunc
	Validate   *validator.Validate
	Translator ut.Translator
	// Registry receives the HTTP metrics and is exposed on /metrics.
	Registry *prometheus.Registry
}

type Server struct {
	ServerDeps
	app      *echo.Echo
	spaces   *registry
	metrics  *httpMetrics
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		spaces:     newRegistry(deps.Conf.Server.ViewTTL),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if s.Registry != nil {
		s.metrics = newHTTPMetrics(s.Registry)
		s.metrics.watchWorkspaces(s.Registry, s.spaces)
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.Conf
	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Renderer = newRenderer()
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.SignalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
		s.app.Logger.SetLevel(log.INFO)
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware)

	if s.Registry != nil {
		s.app.GET("/metrics", metricsHandler(s.Registry))
	}

	s.app.GET("/", s.home, s.optionalAuthMiddleware)
	s.app.GET("/login", s.loginPage, s.optionalAuthMiddleware)
	s.app.POST("/login", s.login)
	s.app.POST("/logout", s.logout, s.authMiddleware)

	s.panel(session.PanelAdmin, registerAdmin)
	s.panel(session.PanelInstructor, registerInstructor)
	s.panel(session.PanelStudent, registerStudent)
	registerRegistration(s, s.app.Group("/register"))
	registerQuiz(s, s.app.Group("/quiz", s.optionalAuthMiddleware))
}

// Start listens on the configured address; listener errors are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks main to shut the server down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	sess, ok := session.FromContext(ctx.Request().Context())
	if !ok {
		return ctx.Redirect(http.StatusSeeOther, "/login")
	}
	return s.redirectToPanel(ctx, sess)
}

// panel mounts the routes of a role-scoped panel under /<panel>; the panel
// root lands on its first page.
func (s *Server) panel(p session.Panel, register func(s *Server, g *echo.Group)) {
	g := s.app.Group("/"+string(p), s.authMiddleware, panelMiddleware(p))
	g.GET("", func(ctx echo.Context) error {
		return ctx.Redirect(http.StatusSeeOther, landing[p])
	})
	register(s, g)
}

var landing = map[session.Panel]string{
	session.PanelAdmin:      "/admin/users",
	session.PanelInstructor: "/instructor/classes",
	session.PanelStudent:    "/student/courses",
}

func (s *Server) redirectToPanel(ctx echo.Context, sess *session.Session) error {
	panel, ok := sess.DefaultPanel()
	if !ok {
		return session.ErrForbidden
	}
	return ctx.Redirect(http.StatusSeeOther, landing[panel])
}

// client returns the backend client acting for the request's session.
func (s *Server) client(ctx echo.Context) *backend.Client {
	if sess, ok := session.FromContext(ctx.Request().Context()); ok {
		return s.Backend.WithToken(sess.Token)
	}
	return s.Backend
}

// workspace returns the workspace of the request's session.
func (s *Server) workspace(ctx echo.Context) *workspace {
	sess, _ := session.FromContext(ctx.Request().Context())
	return s.spaces.get(sess.Token)
}
