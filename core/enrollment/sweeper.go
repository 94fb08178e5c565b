package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
)

// Sweeper compensates provisional enrollments abandoned in awaiting-payment,
// e.g. when the browser was closed before the provider called back.
type Sweeper struct {
	Journal      Journal
	Backend      Backend
	Gateway      Gateway
	Logger       core.Logger
	AbandonAfter time.Duration
	Now          func() time.Time
}

// Sweep compensates every record pending for longer than olderThan
// (AbandonAfter when zero) and returns how many it rolled back.
func (s *Sweeper) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = s.AbandonAfter
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	stale, err := s.Journal.Stale(ctx, now().UTC().Add(-olderThan))
	if err != nil {
		return 0, errors.Wrap(err, "listing stale enrollments")
	}

	var count, failed int
	for _, prov := range stale {
		if err = ctx.Err(); err != nil {
			return count, err
		}
		ok, err := Compensate(ctx, s.Journal, s.Backend, s.Gateway, s.Logger, prov)
		if err != nil {
			failed++
			s.Logger.Error("compensating abandoned enrollment", errors.Wrap(err, prov.ID))
			continue
		}
		if ok {
			count++
		}
	}
	if failed > 0 {
		return count, fmt.Errorf("%d abandoned enrollments could not be compensated", failed)
	}
	return count, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx, 0)
			if err != nil && ctx.Err() == nil {
				s.Logger.Error("sweeping abandoned enrollments", err)
			}
			if n > 0 {
				s.Logger.Info(fmt.Sprintf("compensated %d abandoned enrollments", n))
			}
		}
	}
}
