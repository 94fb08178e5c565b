package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo/portal/core"
)

// Request is a request received by the fake backend.
type Request struct {
	Method string
	Path   string
	Query  string
	Auth   string
	OTT    string
	Body   []byte
}

// Backend is a fake LMS backend. Register routes on Echo before use.
type Backend struct {
	*httptest.Server
	Echo *echo.Echo

	mu       sync.Mutex
	requests []Request
}

func NewBackend(t testing.TB) *Backend {
	b := &Backend{Echo: echo.New()}
	b.Echo.HideBanner = true
	b.Echo.Use(b.record)
	b.Server = httptest.NewServer(b.Echo)
	t.Cleanup(b.Close)
	return b
}

func (b *Backend) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))

		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.RawQuery,
			Auth:   req.Header.Get("Authorization"),
			OTT:    req.URL.Query().Get("ott"),
			Body:   body,
		})
		b.mu.Unlock()
		return next(ctx)
	}
}

// Requests returns the requests received so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// Count returns how many requests hit method and path.
func (b *Backend) Count(method, path string) int {
	var n int
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Config returns a configuration pointing at the fake backend.
func (b *Backend) Config() *core.Config {
	return &core.Config{
		Env:      "TEST",
		TestMode: true,
		AppName:  "Masomo",
		Server: core.ServerConfig{
			CookieName:      "masomo_token",
			DefaultPageSize: 25,
			ViewTTL:         time.Hour,
		},
		Backend:  core.BackendConfig{BaseURL: b.URL, Timeout: 5 * time.Second},
		Payment:  core.PaymentConfig{Provider: "proxy", Currency: "usd"},
		Checkout: core.CheckoutConfig{AbandonAfter: time.Hour, SweepInterval: time.Minute},
	}
}

// OK writes a success envelope.
func OK(ctx echo.Context, payload interface{}) error {
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "payload": payload})
}

// Fail writes a failure envelope.
func Fail(ctx echo.Context, status int, message string) error {
	return ctx.JSON(status, echo.Map{"success": false, "message": message})
}

// ListPayload builds a list payload of rows under resource.
func ListPayload(resource string, rows interface{}, page, totalPages, pageSize, totalCount int) echo.Map {
	return echo.Map{
		resource: rows,
		"pagination": echo.Map{
			"curPage":    page,
			"totalPages": totalPages,
			"pageSize":   pageSize,
			"totalCount": totalCount,
		},
	}
}
