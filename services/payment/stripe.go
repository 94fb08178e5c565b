package payment

import (
	"context"

	"github.com/pkg/errors"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/trezcool/masomo/portal/core/enrollment"
)

// StripeGateway authorizes card payments as manual-capture PaymentIntents:
// the order is approved by the student, then captured once the enrollment
// is settled. Each gateway holds its own client; the package-level stripe.Key
// is never set.
type StripeGateway struct {
	sc *stripe.Client
}

var _ enrollment.Gateway = StripeGateway{}

func NewStripeGateway(apiKey string, opts ...stripe.ClientOption) StripeGateway {
	return StripeGateway{sc: stripe.NewClient(apiKey, opts...)}
}

func (g StripeGateway) CreateOrder(ctx context.Context, order enrollment.Order) (string, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(order.Amount),
		Currency:      stripe.String(order.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Description:   stripe.String(order.Description),
	}
	params.IdempotencyKey = stripe.String("order-" + order.Reference)
	params.AddMetadata("reference", order.Reference)

	pi, err := g.sc.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "stripe: create payment intent")
	}
	return pi.ID, nil
}

// Capture returns the id of the captured charge.
func (g StripeGateway) Capture(ctx context.Context, orderID string) (string, error) {
	pi, err := g.sc.V1PaymentIntents.Capture(ctx, orderID, &stripe.PaymentIntentCaptureParams{})
	if err != nil {
		return "", errors.Wrap(err, "stripe: capture payment intent")
	}
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		return pi.LatestCharge.ID, nil
	}
	return pi.ID, nil
}

func (g StripeGateway) Void(ctx context.Context, orderID string) error {
	_, err := g.sc.V1PaymentIntents.Cancel(ctx, orderID, &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	})
	return errors.Wrap(err, "stripe: cancel payment intent")
}
