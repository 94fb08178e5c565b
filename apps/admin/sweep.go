package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/services/payment"
)

var errNoServiceToken = errors.New("backend service token not set")

// sweep compensates the provisional enrollments pending for longer than olderThan.
func (cli *commandLine) sweep(ctx context.Context, olderThan time.Duration) error {
	if cli.conf.Backend.ServiceToken == "" {
		return errNoServiceToken
	}
	_, journal, err := cli.store(ctx)
	if err != nil {
		return err
	}

	svc := cli.client.WithToken(cli.conf.Backend.ServiceToken)
	gateway, err := payment.NewGateway(cli.conf, svc)
	if err != nil {
		return err
	}
	sweeper := &enrollment.Sweeper{
		Journal:      journal,
		Backend:      svc,
		Gateway:      gateway,
		Logger:       cli.logger,
		AbandonAfter: cli.conf.Checkout.AbandonAfter,
	}
	n, err := sweeper.Sweep(ctx, olderThan)
	fmt.Fprintf(cli.stdout, "%d abandoned checkouts rolled back\n", n)
	return err
}
