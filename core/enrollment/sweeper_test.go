package enrollment_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/storage/database/inmem"
	"github.com/trezcool/masomo/portal/tests"
)

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	j := inmemdb.NewJournal(inmemdb.Open())
	backend := &fakeBackend{}
	gateway := &fakeGateway{}

	records := []Provisional{
		{ID: "p1", EnrollmentID: "e1", OrderID: "o1", CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "p2", EnrollmentID: "e2", OrderID: "o2", CreatedAt: now.Add(-90 * time.Minute)},
		{ID: "p3", EnrollmentID: "e3", OrderID: "o3", CreatedAt: now.Add(-10 * time.Minute)},
		{ID: "p4", EnrollmentID: "e4", OrderID: "o4", CreatedAt: now.Add(-5 * time.Hour), Status: StatusSettled},
	}
	for _, p := range records {
		require.NoError(t, j.Record(ctx, p))
	}

	sweeper := &Sweeper{
		Journal:      j,
		Backend:      backend,
		Gateway:      gateway,
		Logger:       testutil.NewLogger(t),
		AbandonAfter: 2 * time.Hour,
		Now:          func() time.Time { return now },
	}

	n, err := sweeper.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"e1"}, backend.unenrolled)

	n, err = sweeper.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"e1", "e2"}, backend.unenrolled)
	assert.Equal(t, []string{"o1", "o2"}, gateway.voided)

	// nothing left to compensate
	n, err = sweeper.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	p4, _ := j.Get("p4")
	assert.Equal(t, StatusSettled, p4.Status)
}

func TestSweeper_unenrollFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	j := inmemdb.NewJournal(inmemdb.Open())
	backend := &fakeBackend{unenrollErr: errors.New("backend down")}

	require.NoError(t, j.Record(ctx, Provisional{ID: "p1", EnrollmentID: "e1", CreatedAt: now.Add(-time.Hour)}))

	sweeper := &Sweeper{
		Journal: j, Backend: backend, Gateway: &fakeGateway{}, Logger: testutil.NewLogger(t),
		AbandonAfter: time.Minute,
	}
	n, err := sweeper.Sweep(ctx, 0)
	assert.Error(t, err)
	assert.Zero(t, n)

	p1, _ := j.Get("p1")
	assert.Equal(t, StatusPending, p1.Status, "the claim is released")

	backend.unenrollErr = nil
	n, err = sweeper.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"e1", "e1"}, backend.unenrolled)
}
