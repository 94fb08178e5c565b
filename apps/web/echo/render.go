package echoweb

import (
	"embed"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageFiles = map[string]string{
	"login":    "templates/login.html",
	"table":    "templates/table.html",
	"enroll":   "templates/enroll.html",
	"register": "templates/register.html",
	"quiz":     "templates/quiz.html",
	"issue":    "templates/issue.html",
	"error":    "templates/error.html",
}

var funcs = template.FuncMap{
	"add":   func(a, b int) int { return a + b },
	"sub":   func(a, b int) int { return a - b },
	"upper": strings.ToUpper,
	"has":   contains,
	// amounts are in minor units
	"div100": func(n int64) int64 { return n / 100 },
	"mod100": func(n int64) int64 { return n % 100 },
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// renderer renders the page templates, each cloned from the shared layout.
type renderer struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = (*renderer)(nil)

func newRenderer() *renderer {
	layout := template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html"))
	r := &renderer{pages: make(map[string]*template.Template, len(pageFiles))}
	for name, path := range pageFiles {
		tmpl := template.Must(layout.Clone())
		r.pages[name] = template.Must(tmpl.ParseFS(templateFS, path))
	}
	return r
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("unknown page %q", name)
	}
	return tmpl.ExecuteTemplate(w, "layout.html", data)
}

// Toast is a transient notification.
type Toast struct {
	Kind    string `json:"kind"` // success | error | info
	Message string `json:"message"`
}

// page is the data passed to every template.
type page struct {
	Title   string
	Session *session.Session
	Panels  []session.Panel
	Toast   *Toast
	Fields  map[string]string
	Data    interface{}
}

const flashCookie = "masomo_flash"

// setFlash stores a toast shown on the next rendered page.
func setFlash(ctx echo.Context, kind, msg string) {
	ctx.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(kind + ":" + msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func popFlash(ctx echo.Context) *Toast {
	c, err := ctx.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	ctx.SetCookie(&http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	kind, msg, ok := strings.Cut(raw, ":")
	if !ok {
		return nil
	}
	return &Toast{Kind: kind, Message: msg}
}

func newPage(ctx echo.Context, title string, data interface{}) page {
	p := page{Title: title, Toast: popFlash(ctx), Data: data}
	if sess, ok := session.FromContext(ctx.Request().Context()); ok {
		p.Session = sess
		p.Panels = sess.Panels()
	}
	return p
}

func render(ctx echo.Context, code int, name, title string, data interface{}) error {
	return ctx.Render(code, name, newPage(ctx, title, data))
}

// isXHR reports whether the request expects a JSON answer instead of a page.
func isXHR(ctx echo.Context) bool {
	req := ctx.Request()
	return req.Header.Get(echo.HeaderXRequestedWith) == "XMLHttpRequest" ||
		strings.HasPrefix(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

// done answers a mutating request: a toast for XHR, else a redirect to back.
func done(ctx echo.Context, back, msg string) error {
	if isXHR(ctx) {
		return ctx.JSON(http.StatusOK, echo.Map{"toast": Toast{Kind: "success", Message: msg}})
	}
	if msg != "" {
		setFlash(ctx, "success", msg)
	}
	return ctx.Redirect(http.StatusSeeOther, back)
}
