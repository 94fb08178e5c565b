package enrollment_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/portal/core/billing"
	"github.com/trezcool/masomo/portal/core/catalog"
	. "github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/storage/database/inmem"
	"github.com/trezcool/masomo/portal/tests"
)

type fakeBackend struct {
	mu           sync.Mutex
	enrolled     []string
	unenrolled   []string
	transactions []billing.NewTransaction
	enrollErr    error
	unenrollErr  error
	txnErr       error
}

func (b *fakeBackend) Enroll(_ context.Context, kind, id string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.enrollErr != nil {
		return "", b.enrollErr
	}
	eid := fmt.Sprintf("enr-%s-%d", id, len(b.enrolled)+1)
	b.enrolled = append(b.enrolled, eid)
	return eid, nil
}

func (b *fakeBackend) Unenroll(_ context.Context, enrollmentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unenrolled = append(b.unenrolled, enrollmentID)
	return b.unenrollErr
}

func (b *fakeBackend) CreateTransaction(_ context.Context, txn billing.NewTransaction) (billing.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.txnErr != nil {
		return billing.Transaction{}, b.txnErr
	}
	b.transactions = append(b.transactions, txn)
	return billing.Transaction{
		ID:            fmt.Sprintf("txn-%d", len(b.transactions)),
		Amount:        txn.Amount,
		Method:        txn.Method,
		ProviderTxnID: txn.ProviderTxnID,
	}, nil
}

func (b *fakeBackend) unenrollCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.unenrolled)
}

type fakeGateway struct {
	mu         sync.Mutex
	orders     []Order
	captured   []string
	voided     []string
	captureErr error
}

func (g *fakeGateway) CreateOrder(_ context.Context, order Order) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders = append(g.orders, order)
	return fmt.Sprintf("order-%d", len(g.orders)), nil
}

func (g *fakeGateway) Capture(_ context.Context, orderID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.captureErr != nil {
		return "", g.captureErr
	}
	g.captured = append(g.captured, orderID)
	return "pay-" + orderID, nil
}

func (g *fakeGateway) Void(_ context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.voided = append(g.voided, orderID)
	return nil
}

var (
	course = catalog.Enrollable{Kind: catalog.KindCourse, ID: "c1", Name: "Algebra", Price: 5000, AcceptsCash: true}
	bundle = catalog.Enrollable{Kind: catalog.KindBundle, ID: "b1", Name: "Sciences", Price: 12000}
)

type fixture struct {
	flow    *Flow
	backend *fakeBackend
	gateway *fakeGateway
	journal interface {
		Journal
		Get(id string) (Provisional, bool)
	}
	deps Deps
}

func setup(t *testing.T) fixture {
	fx := fixture{
		backend: &fakeBackend{},
		gateway: &fakeGateway{},
		journal: inmemdb.NewJournal(inmemdb.Open()),
	}
	fx.deps = Deps{
		Backend:  fx.backend,
		Gateway:  fx.gateway,
		Journal:  fx.journal,
		Logger:   testutil.NewLogger(t),
		Currency: "usd",
	}
	fx.flow = NewFlow(fx.deps, "u1")
	return fx
}

func TestFlow_cash(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	require.NoError(t, fx.flow.Confirm(course))
	assert.Equal(t, StateConfirming, fx.flow.Status().State)

	require.NoError(t, fx.flow.PayCash(ctx))
	st := fx.flow.Status()
	assert.Equal(t, StateDone, st.State)
	require.NotNil(t, st.Transaction)
	assert.Equal(t, billing.MethodCash, st.Transaction.Method)
	assert.Empty(t, fx.gateway.orders, "cash skips the provider")
	assert.Equal(t, []billing.NewTransaction{{EnrollmentID: "enr-c1-1", Method: billing.MethodCash, Amount: 5000}}, fx.backend.transactions)

	// a finished flow can be restarted
	require.NoError(t, fx.flow.Confirm(bundle))
	assert.Nil(t, fx.flow.Status().Transaction)
}

func TestFlow_cashNotAccepted(t *testing.T) {
	fx := setup(t)
	require.NoError(t, fx.flow.Confirm(bundle))
	assert.Equal(t, ErrCashNotAccepted, fx.flow.PayCash(context.Background()))
	assert.Equal(t, StateConfirming, fx.flow.Status().State)
	assert.Empty(t, fx.backend.enrolled)
}

func TestFlow_credit(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	require.NoError(t, fx.flow.Confirm(bundle))
	orderID, err := fx.flow.PayCredit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-1", orderID)

	st := fx.flow.Status()
	assert.Equal(t, StateAwaitingPayment, st.State)
	assert.Equal(t, orderID, st.OrderID)
	require.Len(t, fx.gateway.orders, 1)
	assert.Equal(t, int64(12000), fx.gateway.orders[0].Amount)
	assert.Equal(t, "usd", fx.gateway.orders[0].Currency)

	assert.Equal(t, ErrOrderMismatch, fx.flow.Approve(ctx, "order-9"))

	require.NoError(t, fx.flow.Approve(ctx, orderID))
	st = fx.flow.Status()
	assert.Equal(t, StateDone, st.State)
	assert.Equal(t, "pay-order-1", st.Transaction.ProviderTxnID)
	assert.Equal(t, []string{"order-1"}, fx.gateway.captured)

	prov, ok := fx.journal.Get(fx.gateway.orders[0].Reference)
	require.True(t, ok)
	assert.Equal(t, StatusSettled, prov.Status)
	assert.Zero(t, fx.backend.unenrollCount())
}

func TestFlow_cancelIssuesOneUnenroll(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	require.NoError(t, fx.flow.Confirm(bundle))
	_, err := fx.flow.PayCredit(ctx)
	require.NoError(t, err)

	require.NoError(t, fx.flow.Cancel(ctx))
	require.NoError(t, fx.flow.Cancel(ctx)) // duplicate provider callback

	assert.Equal(t, []string{"enr-b1-1"}, fx.backend.unenrolled)
	assert.Equal(t, []string{"order-1"}, fx.gateway.voided)
	st := fx.flow.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Empty(t, st.OrderID)
	assert.NoError(t, st.Err)

	prov, _ := fx.journal.Get(fx.gateway.orders[0].Reference)
	assert.Equal(t, StatusCompensated, prov.Status)

	// approving after the cancel is refused
	assert.Equal(t, ErrInvalidTransition, errors.Cause(fx.flow.Approve(ctx, "order-1")))
}

func TestFlow_concurrentCancel(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	require.NoError(t, fx.flow.Confirm(bundle))
	_, err := fx.flow.PayCredit(ctx)
	require.NoError(t, err)

	// the same flow from two tabs plus the sweeper
	sweeper := &Sweeper{
		Journal: fx.journal, Backend: fx.backend, Gateway: fx.gateway, Logger: fx.deps.Logger,
		Now: func() time.Time { return time.Now().Add(time.Hour) },
	}
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = fx.flow.Cancel(ctx)
		}()
		go func() {
			defer wg.Done()
			_, _ = sweeper.Sweep(ctx, time.Minute)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fx.backend.unenrollCount())
}

func TestFlow_submissionFailure(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	fx.backend.txnErr = errors.New("backend down")

	require.NoError(t, fx.flow.Confirm(bundle))
	orderID, err := fx.flow.PayCredit(ctx)
	require.NoError(t, err)

	err = fx.flow.Approve(ctx, orderID)
	assert.EqualError(t, err, "creating transaction: backend down")
	st := fx.flow.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, err, st.Err)
	assert.Len(t, fx.backend.transactions, 0, "no retry")

	// the error is cleared by the next attempt
	fx.backend.txnErr = nil
	require.NoError(t, fx.flow.Confirm(bundle))
	assert.NoError(t, fx.flow.Status().Err)
}

func TestFlow_captureFailureRollsBack(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	fx.gateway.captureErr = errors.New("card declined")

	require.NoError(t, fx.flow.Confirm(bundle))
	orderID, err := fx.flow.PayCredit(ctx)
	require.NoError(t, err)

	require.Error(t, fx.flow.Approve(ctx, orderID))
	assert.Equal(t, StateIdle, fx.flow.Status().State)
	assert.Equal(t, 1, fx.backend.unenrollCount())
	assert.Empty(t, fx.backend.transactions)
}

func TestFlow_enrollFailure(t *testing.T) {
	fx := setup(t)
	fx.backend.enrollErr = errors.New("course full")

	require.NoError(t, fx.flow.Confirm(bundle))
	_, err := fx.flow.PayCredit(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, fx.flow.Status().State)
	assert.Empty(t, fx.gateway.orders)
}

func TestFlow_invalidTransitions(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		op   func() error
	}{
		{name: "cash before confirm", op: func() error { return fx.flow.PayCash(ctx) }},
		{name: "credit before confirm", op: func() error { _, err := fx.flow.PayCredit(ctx); return err }},
		{name: "approve before credit", op: func() error { return fx.flow.Approve(ctx, "order-1") }},
		{name: "back from idle", op: fx.flow.Back},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ErrInvalidTransition, errors.Cause(tt.op()))
		})
	}

	// cancelling an idle flow is a no-op
	assert.NoError(t, fx.flow.Cancel(ctx))
	assert.Zero(t, fx.backend.unenrollCount())
}
