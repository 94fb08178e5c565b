package echoweb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
	"github.com/trezcool/masomo/portal/services/backend"
	"github.com/trezcool/masomo/portal/services/payment"
	inmemdb "github.com/trezcool/masomo/portal/storage/database/inmem"
	testutil "github.com/trezcool/masomo/portal/tests"
)

const (
	adminToken      = "admin-token"
	instructorToken = "instructor-token"
	studentToken    = "student-token"
)

var accounts = map[string]user.Me{
	adminToken:      {ID: "u-admin", FirstName: "Grace", LastName: "Hopper", Roles: []string{user.RoleAdminOwner}},
	instructorToken: {ID: "u-inst", FirstName: "Alan", LastName: "Turing", Roles: []string{user.RoleInstructor}},
	studentToken:    {ID: "u-stud", FirstName: "Ada", LastName: "Lovelace", Roles: []string{user.RoleStudent}},
}

// harness is a portal wired to a fake backend.
type harness struct {
	t        *testing.T
	srv      *Server
	be       *testutil.Backend
	conf     *core.Config
	logger   *testutil.Logger
	registry *prometheus.Registry
	db       *inmemdb.DB
}

func newHarness(t *testing.T) *harness {
	be := testutil.NewBackend(t)
	h := &harness{
		t:        t,
		be:       be,
		conf:     be.Config(),
		logger:   testutil.NewLogger(t),
		registry: prometheus.NewRegistry(),
		db:       inmemdb.Open(),
	}
	be.Echo.POST("/users/login", func(ctx echo.Context) error {
		var creds struct{ Username, Password string }
		if err := ctx.Bind(&creds); err != nil {
			return err
		}
		token := strings.TrimSuffix(creds.Username, "@test.cd") + "-token"
		if _, ok := accounts[token]; !ok || creds.Password != "secret" {
			return testutil.Fail(ctx, http.StatusUnauthorized, "Invalid credentials")
		}
		return testutil.OK(ctx, echo.Map{"token": token})
	})
	be.Echo.GET("/users/me", func(ctx echo.Context) error {
		me, ok := accounts[strings.TrimPrefix(ctx.Request().Header.Get("Authorization"), "Bearer ")]
		if !ok {
			return testutil.Fail(ctx, http.StatusUnauthorized, "Invalid token")
		}
		return testutil.OK(ctx, me)
	})

	client := backend.NewClient(h.conf, backend.NewMetrics(h.registry))
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	conf := h.conf
	h.srv = NewServer(ServerDeps{
		Conf:     conf,
		Logger:   h.logger,
		Backend:  client,
		Sessions: session.NewManager(client, time.Minute),
		Journal:  inmemdb.NewJournal(h.db),
		Gateway: func(c *backend.Client) (enrollment.Gateway, error) {
			return payment.NewGateway(conf, c)
		},
		Validate:   validate,
		Translator: translator,
		Registry:   h.registry,
	})
	return h
}

type reqOpt func(r *http.Request)

func withToken(token string) reqOpt {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "masomo_token", Value: token})
	}
}

func withCookie(c *http.Cookie) reqOpt {
	return func(r *http.Request) { r.AddCookie(c) }
}

func asXHR(r *http.Request) {
	r.Header.Set(echo.HeaderXRequestedWith, "XMLHttpRequest")
}

func (h *harness) do(method, path string, form url.Values, opts ...reqOpt) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func (h *harness) get(path string, opts ...reqOpt) *httptest.ResponseRecorder {
	return h.do(http.MethodGet, path, nil, opts...)
}

func (h *harness) post(path string, form url.Values, opts ...reqOpt) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return h.do(http.MethodPost, path, form, opts...)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func toastOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	toast, _ := decode(t, rec)["toast"].(map[string]interface{})
	msg, _ := toast["message"].(string)
	return msg
}

func cookieOf(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
