package backend

import (
	"context"
	"net/url"

	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo/portal/core/billing"
	"github.com/trezcool/masomo/portal/core/certificate"
	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/core/table"
)

var _ enrollment.Backend = (*Client)(nil)

func (c *Client) Transactions(ctx context.Context, page int) (table.Page[billing.Transaction], error) {
	return list[billing.Transaction](ctx, c, call{endpoint: "transactions.list", method: rest.Get, path: "/transactions"}, "transactions", page)
}

func (c *Client) SearchTransactions(ctx context.Context, q table.Query, page int) (table.Page[billing.Transaction], error) {
	return list[billing.Transaction](ctx, c, call{
		endpoint: "transactions.search",
		method:   rest.Post,
		path:     "/transactions/search",
		body:     q,
	}, "transactions", page)
}

func (c *Client) CreateTransaction(ctx context.Context, txn billing.NewTransaction) (billing.Transaction, error) {
	var out billing.Transaction
	err := c.do(ctx, call{endpoint: "transactions.create", method: rest.Post, path: "/transactions", body: txn}, &out)
	return out, err
}

func (c *Client) Certificates(ctx context.Context, page int) (table.Page[certificate.Certificate], error) {
	return list[certificate.Certificate](ctx, c, call{endpoint: "certificates.list", method: rest.Get, path: "/certificates"}, "certificates", page)
}

func (c *Client) IssueCertificates(ctx context.Context, issue certificate.Issue) error {
	return c.do(ctx, call{endpoint: "certificates.issue", method: rest.Post, path: "/certificates/issue", body: issue}, nil)
}

type enrollBody struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (c *Client) Enroll(ctx context.Context, kind, id string) (string, error) {
	var out struct {
		EnrollmentID string `json:"enrollmentId"`
	}
	err := c.do(ctx, call{endpoint: "enrollments.create", method: rest.Post, path: "/enrollments", body: enrollBody{Kind: kind, ID: id}}, &out)
	return out.EnrollmentID, err
}

func (c *Client) Unenroll(ctx context.Context, enrollmentID string) error {
	return c.do(ctx, call{
		endpoint: "enrollments.unenroll",
		method:   rest.Post,
		path:     "/enrollments/" + url.PathEscape(enrollmentID) + "/unenroll",
	}, nil)
}

type orderBody struct {
	Reference   string `json:"reference"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

// CreatePaymentOrder creates an order through the backend's payment proxy.
func (c *Client) CreatePaymentOrder(ctx context.Context, order enrollment.Order) (string, error) {
	var out struct {
		OrderID string `json:"orderId"`
	}
	err := c.do(ctx, call{
		endpoint: "payments.order",
		method:   rest.Post,
		path:     "/payments/orders",
		body:     orderBody{Reference: order.Reference, Amount: order.Amount, Currency: order.Currency, Description: order.Description},
	}, &out)
	return out.OrderID, err
}

func (c *Client) CapturePaymentOrder(ctx context.Context, orderID string) (string, error) {
	var out struct {
		TransactionID string `json:"transactionId"`
	}
	err := c.do(ctx, call{
		endpoint: "payments.capture",
		method:   rest.Post,
		path:     "/payments/orders/" + url.PathEscape(orderID) + "/capture",
	}, &out)
	return out.TransactionID, err
}

func (c *Client) VoidPaymentOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, call{
		endpoint: "payments.void",
		method:   rest.Post,
		path:     "/payments/orders/" + url.PathEscape(orderID) + "/void",
	}, nil)
}
