// Package payment holds the credit-card gateways used by the enrollment flow.
package payment

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/services/backend"
)

const (
	ProviderProxy  = "proxy"
	ProviderStripe = "stripe"
)

var ErrUnknownProvider = errors.New("unknown payment provider")

// Orders is the part of the backend client that proxies payment orders.
type Orders interface {
	CreatePaymentOrder(ctx context.Context, order enrollment.Order) (string, error)
	CapturePaymentOrder(ctx context.Context, orderID string) (string, error)
	VoidPaymentOrder(ctx context.Context, orderID string) error
}

var _ Orders = (*backend.Client)(nil)

// ProxyGateway relays orders through the LMS backend, which owns the
// provider credentials.
type ProxyGateway struct {
	orders Orders
}

var _ enrollment.Gateway = (*ProxyGateway)(nil)

func NewProxyGateway(orders Orders) *ProxyGateway {
	return &ProxyGateway{orders: orders}
}

func (g *ProxyGateway) CreateOrder(ctx context.Context, order enrollment.Order) (string, error) {
	id, err := g.orders.CreatePaymentOrder(ctx, order)
	if err != nil {
		return "", errors.Wrap(err, "proxy: create order")
	}
	if id == "" {
		return "", errors.New("proxy: backend returned no order id")
	}
	return id, nil
}

func (g *ProxyGateway) Capture(ctx context.Context, orderID string) (string, error) {
	txID, err := g.orders.CapturePaymentOrder(ctx, orderID)
	return txID, errors.Wrap(err, "proxy: capture order")
}

func (g *ProxyGateway) Void(ctx context.Context, orderID string) error {
	return errors.Wrap(g.orders.VoidPaymentOrder(ctx, orderID), "proxy: void order")
}

// NewGateway returns the gateway configured for the deployment. Proxy
// gateways act as the principal of client.
func NewGateway(conf *core.Config, client *backend.Client) (enrollment.Gateway, error) {
	switch conf.Payment.Provider {
	case ProviderProxy, "":
		return NewProxyGateway(client), nil
	case ProviderStripe:
		if conf.Payment.StripeKey == "" {
			return nil, errors.New("stripe: missing secret key")
		}
		return NewStripeGateway(conf.Payment.StripeKey), nil
	default:
		return nil, errors.Wrap(ErrUnknownProvider, conf.Payment.Provider)
	}
}
