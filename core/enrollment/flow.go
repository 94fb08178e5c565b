// Package enrollment drives the enrollment confirmation and payment flow:
//
//	idle -> confirming -> submitting -> done                       (cash)
//	idle -> confirming -> awaiting-payment -> submitting -> done   (credit)
//
// Cancelling the payment rolls the provisional enrollment back with exactly one
// compensating unenroll. Enrollments abandoned in awaiting-payment are
// compensated by the Sweeper.
package enrollment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/billing"
	"github.com/trezcool/masomo/portal/core/catalog"
)

type State int

const (
	StateIdle State = iota
	StateConfirming
	StateAwaitingPayment
	StateSubmitting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateConfirming:
		return "confirming"
	case StateAwaitingPayment:
		return "awaiting-payment"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	default:
		return "idle"
	}
}

var (
	ErrInvalidTransition = errors.New("invalid enrollment step")
	ErrBusy              = errors.New("enrollment request already in progress")
	ErrCashNotAccepted   = errors.New("cash payment is not accepted for this item")
	ErrOrderMismatch     = errors.New("payment order does not match the enrollment")
	ErrCheckoutExpired   = errors.New("checkout expired, please enroll again")
)

type (
	// Backend is the part of the LMS API the flow talks to.
	Backend interface {
		Enroll(ctx context.Context, kind, id string) (enrollmentID string, err error)
		Unenroll(ctx context.Context, enrollmentID string) error
		CreateTransaction(ctx context.Context, txn billing.NewTransaction) (billing.Transaction, error)
	}

	// Order is a payment order to create with the provider.
	Order struct {
		Reference   string
		Amount      int64
		Currency    string
		Description string
	}

	// Gateway is a payment provider.
	Gateway interface {
		CreateOrder(ctx context.Context, order Order) (orderID string, err error)
		Capture(ctx context.Context, orderID string) (transactionID string, err error)
		Void(ctx context.Context, orderID string) error
	}
)

// Deps are the collaborators shared by every Flow.
type Deps struct {
	Backend  Backend
	Gateway  Gateway
	Journal  Journal
	Logger   core.Logger
	Currency string
	Now      func() time.Time
}

// Status is a consistent copy of a Flow's state, for rendering.
type Status struct {
	State       State
	Item        catalog.Enrollable
	OrderID     string
	Err         error
	Transaction *billing.Transaction
}

// Flow is the enrollment flow of one user. It is safe for concurrent use;
// a request arriving while another one is in progress fails with ErrBusy.
type Flow struct {
	deps   Deps
	userID string

	mu    sync.Mutex
	state State
	busy  bool
	item  catalog.Enrollable
	prov  *Provisional
	txn   *billing.Transaction
	err   error
}

func NewFlow(deps Deps, userID string) *Flow {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Flow{deps: deps, userID: userID}
}

func (f *Flow) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := Status{State: f.state, Item: f.item, Err: f.err, Transaction: f.txn}
	if f.prov != nil {
		st.OrderID = f.prov.OrderID
	}
	return st
}

// Confirm starts the flow for item. A finished flow may be restarted.
func (f *Flow) Confirm(item catalog.Enrollable) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.busy {
		return ErrBusy
	}
	switch f.state {
	case StateIdle, StateConfirming, StateDone:
	default:
		return errors.Wrapf(ErrInvalidTransition, "confirm from %s", f.state)
	}
	f.state = StateConfirming
	f.item = item
	f.prov = nil
	f.txn = nil
	f.err = nil
	return nil
}

// Back leaves the confirmation without sending anything.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.busy {
		return ErrBusy
	}
	if f.state != StateConfirming {
		return errors.Wrapf(ErrInvalidTransition, "back from %s", f.state)
	}
	f.state = StateIdle
	return nil
}

// PayCash enrolls and records a cash transaction, skipping the provider.
func (f *Flow) PayCash(ctx context.Context) error {
	f.mu.Lock()
	if err := f.acquire(StateConfirming); err != nil {
		f.mu.Unlock()
		return err
	}
	if !f.item.AcceptsCash {
		f.busy = false
		f.mu.Unlock()
		return ErrCashNotAccepted
	}
	item := f.item
	f.state = StateSubmitting
	f.mu.Unlock()

	txn, err := f.submitCash(ctx, item)
	f.finish(txn, err)
	return err
}

func (f *Flow) submitCash(ctx context.Context, item catalog.Enrollable) (*billing.Transaction, error) {
	enrollmentID, err := f.deps.Backend.Enroll(ctx, item.Kind, item.ID)
	if err != nil {
		return nil, errors.Wrap(err, "enrolling")
	}
	txn, err := f.deps.Backend.CreateTransaction(ctx, billing.NewTransaction{
		EnrollmentID: enrollmentID,
		Method:       billing.MethodCash,
		Amount:       item.Price,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating transaction")
	}
	return &txn, nil
}

// PayCredit creates the provisional enrollment and the provider order.
// The flow then awaits Approve or Cancel.
func (f *Flow) PayCredit(ctx context.Context) (orderID string, err error) {
	f.mu.Lock()
	if err := f.acquire(StateConfirming); err != nil {
		f.mu.Unlock()
		return "", err
	}
	item := f.item
	f.mu.Unlock()

	prov, err := f.prepareCredit(ctx, item)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if err != nil {
		f.state = StateIdle
		f.err = err
		return "", err
	}
	f.state = StateAwaitingPayment
	f.prov = prov
	f.err = nil
	return prov.OrderID, nil
}

func (f *Flow) prepareCredit(ctx context.Context, item catalog.Enrollable) (*Provisional, error) {
	enrollmentID, err := f.deps.Backend.Enroll(ctx, item.Kind, item.ID)
	if err != nil {
		return nil, errors.Wrap(err, "enrolling")
	}

	now := f.deps.Now().UTC()
	prov := &Provisional{
		ID:           uuid.NewString(),
		EnrollmentID: enrollmentID,
		UserID:       f.userID,
		ItemKind:     item.Kind,
		ItemID:       item.ID,
		Amount:       item.Price,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	prov.OrderID, err = f.deps.Gateway.CreateOrder(ctx, Order{
		Reference:   prov.ID,
		Amount:      item.Price,
		Currency:    f.deps.Currency,
		Description: fmt.Sprintf("%s %s", item.Kind, item.Name),
	})
	if err != nil {
		f.unenroll(ctx, enrollmentID)
		return nil, errors.Wrap(err, "creating payment order")
	}

	if err = f.deps.Journal.Record(ctx, *prov); err != nil {
		if vErr := f.deps.Gateway.Void(ctx, prov.OrderID); vErr != nil {
			f.deps.Logger.Warn("voiding payment order", errors.Wrap(vErr, prov.OrderID))
		}
		f.unenroll(ctx, enrollmentID)
		return nil, errors.Wrap(err, "recording provisional enrollment")
	}
	return prov, nil
}

// Approve is the provider's success callback: it captures the order and
// forwards the provider transaction id to the transaction endpoint.
// A failure returns the flow to idle; nothing is retried.
func (f *Flow) Approve(ctx context.Context, orderID string) error {
	f.mu.Lock()
	if err := f.acquire(StateAwaitingPayment); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.prov.OrderID != orderID {
		f.busy = false
		f.mu.Unlock()
		return ErrOrderMismatch
	}
	prov := *f.prov
	f.state = StateSubmitting
	f.mu.Unlock()

	txn, err := f.submitCredit(ctx, prov)
	f.finish(txn, err)
	return err
}

func (f *Flow) submitCredit(ctx context.Context, prov Provisional) (*billing.Transaction, error) {
	// settling first keeps the sweeper off the record while we capture
	if err := f.deps.Journal.Settle(ctx, prov.ID); err != nil {
		if errors.Cause(err) == ErrNotPending {
			return nil, ErrCheckoutExpired
		}
		return nil, errors.Wrap(err, "settling provisional enrollment")
	}

	providerTxnID, err := f.deps.Gateway.Capture(ctx, prov.OrderID)
	if err != nil {
		f.unenroll(ctx, prov.EnrollmentID)
		if jErr := f.deps.Journal.Compensated(ctx, prov.ID); jErr != nil {
			f.deps.Logger.Error("marking provisional enrollment compensated", errors.Wrap(jErr, prov.ID))
		}
		return nil, errors.Wrap(err, "capturing payment")
	}

	txn, err := f.deps.Backend.CreateTransaction(ctx, billing.NewTransaction{
		EnrollmentID:  prov.EnrollmentID,
		Method:        billing.MethodCredit,
		Amount:        prov.Amount,
		ProviderTxnID: providerTxnID,
	})
	if err != nil {
		// the payment was taken: leave a trace for the operators
		f.deps.Logger.Error(
			"payment captured but transaction not recorded",
			errors.Wrap(err, "creating transaction"),
			map[string]interface{}{
				"enrollmentId":          prov.EnrollmentID,
				"orderId":               prov.OrderID,
				"providerTransactionId": providerTxnID,
			},
		)
		return nil, errors.Wrap(err, "creating transaction")
	}
	return &txn, nil
}

// Cancel is the provider's cancel callback. From awaiting-payment it issues
// exactly one compensating unenroll and returns to idle; cancelling an idle
// flow is a no-op.
func (f *Flow) Cancel(ctx context.Context) error {
	f.mu.Lock()
	switch {
	case f.busy:
		f.mu.Unlock()
		return ErrBusy
	case f.state == StateIdle:
		f.mu.Unlock()
		return nil
	case f.state == StateConfirming:
		f.state = StateIdle
		f.mu.Unlock()
		return nil
	case f.state != StateAwaitingPayment:
		st := f.state
		f.mu.Unlock()
		return errors.Wrapf(ErrInvalidTransition, "cancel from %s", st)
	}
	prov := *f.prov
	f.state = StateIdle
	f.prov = nil
	f.err = nil
	f.mu.Unlock()

	_, err := Compensate(ctx, f.deps.Journal, f.deps.Backend, f.deps.Gateway, f.deps.Logger, prov)
	return err
}

// acquire checks the current state and marks the flow busy. mu must be held.
func (f *Flow) acquire(want State) error {
	if f.busy {
		return ErrBusy
	}
	if f.state != want {
		return errors.Wrapf(ErrInvalidTransition, "expected %s, got %s", want, f.state)
	}
	f.busy = true
	return nil
}

func (f *Flow) finish(txn *billing.Transaction, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.busy = false
	f.prov = nil
	if err != nil {
		f.state = StateIdle
		f.err = err
		return
	}
	f.state = StateDone
	f.txn = txn
	f.err = nil
}

func (f *Flow) unenroll(ctx context.Context, enrollmentID string) {
	if err := f.deps.Backend.Unenroll(ctx, enrollmentID); err != nil {
		f.deps.Logger.Error("rolling back enrollment", errors.Wrap(err, enrollmentID))
	}
}

// Compensate claims prov and rolls it back: the order is voided and the
// enrollment removed. It reports false when another party already claimed
// or settled the record. A failed unenroll releases the claim so that a
// later sweep retries it.
func Compensate(ctx context.Context, journal Journal, backend Backend, gateway Gateway, logger core.Logger, prov Provisional) (bool, error) {
	claimed, err := journal.Claim(ctx, prov.ID)
	if err != nil {
		return false, errors.Wrap(err, "claiming provisional enrollment")
	}
	if !claimed {
		return false, nil
	}

	if prov.OrderID != "" {
		if err = gateway.Void(ctx, prov.OrderID); err != nil {
			logger.Warn("voiding payment order", errors.Wrap(err, prov.OrderID))
		}
	}

	if err = backend.Unenroll(ctx, prov.EnrollmentID); err != nil {
		if rErr := journal.Release(ctx, prov.ID); rErr != nil {
			logger.Error("releasing provisional enrollment", errors.Wrap(rErr, prov.ID))
		}
		return false, errors.Wrap(err, "unenrolling")
	}

	if err = journal.Compensated(ctx, prov.ID); err != nil {
		return true, errors.Wrap(err, "marking provisional enrollment compensated")
	}
	return true, nil
}
