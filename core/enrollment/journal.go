package enrollment

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Journal statuses of a provisional enrollment.
const (
	StatusPending      = "pending"      // awaiting the provider's approval
	StatusCompensating = "compensating" // unenroll in progress
	StatusCompensated  = "compensated"
	StatusSettled      = "settled" // payment approved
)

var (
	ErrNotFound   = errors.New("provisional enrollment not found")
	ErrNotPending = errors.New("provisional enrollment is no longer pending")
)

// Provisional is a server-side enrollment created before the payment was approved.
type Provisional struct {
	ID           string
	EnrollmentID string
	UserID       string
	ItemKind     string
	ItemID       string
	OrderID      string
	Amount       int64
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Journal persists provisional enrollments so that each one is either settled
// or compensated exactly once, across requests and processes.
type Journal interface {
	Record(ctx context.Context, p Provisional) error
	// Claim moves a pending record to compensating. It reports false if the
	// record was already claimed or settled.
	Claim(ctx context.Context, id string) (bool, error)
	// Release moves a compensating record back to pending, after a failed unenroll.
	Release(ctx context.Context, id string) error
	// Settle moves a pending record to settled; ErrNotPending otherwise.
	Settle(ctx context.Context, id string) error
	Compensated(ctx context.Context, id string) error
	// Stale lists the pending records created before the given time.
	Stale(ctx context.Context, before time.Time) ([]Provisional, error)
}
