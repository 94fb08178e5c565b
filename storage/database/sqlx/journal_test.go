package sqlxrepos

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/storage/database"
)

// openTestDB connects to the database of the TEST config; tests are skipped
// unless TEST_DATABASE_HOST is set.
func openTestDB(t *testing.T) *journal {
	if os.Getenv("TEST_DATABASE_HOST") == "" || testing.Short() {
		t.Skip("TEST_DATABASE_HOST not set")
	}
	t.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(ctx, conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db.DB))
	_, err = db.ExecContext(ctx, "TRUNCATE provisional_enrollment")
	require.NoError(t, err)
	return NewJournal(db)
}

func record(t *testing.T, j *journal, createdAt time.Time) enrollment.Provisional {
	p := enrollment.Provisional{
		ID:           uuid.NewString(),
		EnrollmentID: "e-" + uuid.NewString()[:8],
		UserID:       "u1",
		ItemKind:     "course",
		ItemID:       "c1",
		Amount:       4500,
		CreatedAt:    createdAt,
	}
	require.NoError(t, j.Record(context.Background(), p))
	return p
}

func TestJournal_transitions(t *testing.T) {
	j := openTestDB(t)
	ctx := context.Background()
	p := record(t, j, time.Now())

	got, err := j.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusPending, got.Status)
	assert.Empty(t, got.OrderID)

	ok, err := j.Claim(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = j.Claim(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok, "claimed twice")

	assert.Equal(t, enrollment.ErrNotPending, j.Settle(ctx, p.ID))
	require.NoError(t, j.Release(ctx, p.ID))
	require.NoError(t, j.Settle(ctx, p.ID))
	require.NoError(t, j.Compensated(ctx, p.ID))

	got, err = j.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusCompensated, got.Status)

	_, err = j.Claim(ctx, uuid.NewString())
	assert.Equal(t, enrollment.ErrNotFound, err)
}

func TestJournal_Stale(t *testing.T) {
	j := openTestDB(t)
	ctx := context.Background()
	now := time.Now()
	older := record(t, j, now.Add(-3*time.Hour))
	old := record(t, j, now.Add(-2*time.Hour))
	record(t, j, now)
	settled := record(t, j, now.Add(-4*time.Hour))
	require.NoError(t, j.Settle(ctx, settled.ID))

	stale, err := j.Stale(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, older.ID, stale[0].ID)
	assert.Equal(t, old.ID, stale[1].ID)
}
