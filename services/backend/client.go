// Package backend is the client of the LMS REST API. Every response is
// wrapped in the envelope {success, payload, message|detail}; list payloads
// are {<resource>: [...], pagination: {...}}.
package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/table"
)

// Client talks to the backend on behalf of one principal: a session token,
// a one-time token (OTT) or nobody. Clients are cheap to derive and safe
// for concurrent use.
type Client struct {
	http     *rest.Client
	baseURL  string
	pageSize int
	token    string
	ott      string
	metrics  *Metrics
}

func NewClient(conf *core.Config, metrics *Metrics) *Client {
	return &Client{
		http:     &rest.Client{HTTPClient: &http.Client{Timeout: conf.Backend.Timeout}},
		baseURL:  strings.TrimRight(conf.Backend.BaseURL, "/"),
		pageSize: conf.Server.DefaultPageSize,
		metrics:  metrics,
	}
}

// WithToken returns a client authenticated with a bearer token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	cp.ott = ""
	return &cp
}

// WithOTT returns a client authenticated with a one-time token.
func (c *Client) WithOTT(ott string) *Client {
	cp := *c
	cp.ott = ott
	cp.token = ""
	return &cp
}

func (c *Client) PageSize() int { return c.pageSize }

type envelope struct {
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
}

// call describes one backend request. endpoint is the metrics label.
type call struct {
	endpoint string
	method   rest.Method
	path     string
	query    map[string]string
	body     interface{}
}

func (c *Client) send(ctx context.Context, cl call) (*rest.Response, error) {
	req := rest.Request{
		Method:      cl.method,
		BaseURL:     c.baseURL + cl.path,
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: make(map[string]string, len(cl.query)+1),
	}
	for k, v := range cl.query {
		req.QueryParams[k] = v
	}
	if c.token != "" {
		req.Headers["Authorization"] = "Bearer " + c.token
	}
	if c.ott != "" {
		req.QueryParams["ott"] = c.ott
	}
	if cl.body != nil {
		body, err := json.Marshal(cl.body)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding %s body", cl.endpoint)
		}
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	start := time.Now()
	res, err := c.http.SendWithContext(ctx, req)
	if err != nil {
		c.metrics.observe(cl.endpoint, "error", time.Since(start))
		return nil, errors.Wrapf(err, "%s %s", cl.method, cl.path)
	}
	c.metrics.observe(cl.endpoint, strconv.Itoa(res.StatusCode), time.Since(start))
	return res, nil
}

// do sends the call and decodes the envelope payload into out (if not nil).
func (c *Client) do(ctx context.Context, cl call, out interface{}) error {
	res, err := c.send(ctx, cl)
	if err != nil {
		return err
	}

	var env envelope
	decodeErr := json.Unmarshal([]byte(res.Body), &env)
	if res.StatusCode >= http.StatusBadRequest || (decodeErr == nil && !env.Success) {
		return apiError(res.StatusCode, env)
	}
	if decodeErr != nil {
		return errors.Wrapf(decodeErr, "decoding %s response", cl.endpoint)
	}

	if out == nil || len(env.Payload) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(env.Payload, out), "decoding %s payload", cl.endpoint)
}

// raw sends the call and returns the undecoded body, e.g. a CSV export.
func (c *Client) raw(ctx context.Context, cl call) ([]byte, string, error) {
	res, err := c.send(ctx, cl)
	if err != nil {
		return nil, "", err
	}
	if res.StatusCode >= http.StatusBadRequest {
		var env envelope
		_ = json.Unmarshal([]byte(res.Body), &env)
		return nil, "", apiError(res.StatusCode, env)
	}
	var contentType string
	if ct := res.Headers["Content-Type"]; len(ct) > 0 {
		contentType = ct[0]
	}
	return []byte(res.Body), contentType, nil
}

func apiError(status int, env envelope) error {
	msg := env.Message
	if msg == "" {
		msg = env.Detail
	}
	if status < http.StatusBadRequest {
		// {success: false} with a 2xx status
		status = http.StatusBadRequest
	}
	return &core.APIError{Status: status, Message: msg}
}

// list loads one page of a list endpoint; resource is the payload key of the rows.
func list[R any](ctx context.Context, c *Client, cl call, resource string, page int) (table.Page[R], error) {
	if cl.query == nil {
		cl.query = make(map[string]string, 2)
	}
	cl.query["page"] = strconv.Itoa(page)
	if c.pageSize > 0 {
		cl.query["pageSize"] = strconv.Itoa(c.pageSize)
	}

	var payload map[string]json.RawMessage
	if err := c.do(ctx, cl, &payload); err != nil {
		return table.Page[R]{}, err
	}

	var p table.Page[R]
	if rows, ok := payload[resource]; ok && string(rows) != "null" {
		if err := json.Unmarshal(rows, &p.Rows); err != nil {
			return table.Page[R]{}, errors.Wrapf(err, "decoding %s", resource)
		}
	}
	if pg, ok := payload["pagination"]; ok {
		if err := json.Unmarshal(pg, &p.Pagination); err != nil {
			return table.Page[R]{}, errors.Wrap(err, "decoding pagination")
		}
	}
	if p.Rows == nil {
		p.Rows = []R{}
	}
	return p, nil
}
