package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo/portal/core/enrollment"
)

type provisionalRow struct {
	ID           string      `db:"id"`
	EnrollmentID string      `db:"enrollment_id"`
	UserID       string      `db:"user_id"`
	ItemKind     string      `db:"item_kind"`
	ItemID       string      `db:"item_id"`
	OrderID      null.String `db:"order_id"`
	Amount       int64       `db:"amount"`
	Status       string      `db:"status"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func (r provisionalRow) model() enrollment.Provisional {
	return enrollment.Provisional{
		ID:           r.ID,
		EnrollmentID: r.EnrollmentID,
		UserID:       r.UserID,
		ItemKind:     r.ItemKind,
		ItemID:       r.ItemID,
		OrderID:      r.OrderID.String,
		Amount:       r.Amount,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// journal stores provisional enrollments in Postgres. Status transitions
// are single conditional UPDATEs, so concurrent claimers (request handlers,
// sweepers of other processes) agree on a single winner.
type journal struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ enrollment.Journal = (*journal)(nil)

func NewJournal(db *sqlx.DB) *journal {
	return &journal{db: db, now: time.Now}
}

func (j *journal) Record(ctx context.Context, p enrollment.Provisional) error {
	if p.Status == "" {
		p.Status = enrollment.StatusPending
	}
	now := j.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	row := provisionalRow{
		ID:           p.ID,
		EnrollmentID: p.EnrollmentID,
		UserID:       p.UserID,
		ItemKind:     p.ItemKind,
		ItemID:       p.ItemID,
		OrderID:      null.NewString(p.OrderID, p.OrderID != ""),
		Amount:       p.Amount,
		Status:       p.Status,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    now,
	}
	_, err := j.db.NamedExecContext(ctx, `
		INSERT INTO provisional_enrollment
			(id, enrollment_id, user_id, item_kind, item_id, order_id, amount, status, created_at, updated_at)
		VALUES
			(:id, :enrollment_id, :user_id, :item_kind, :item_id, :order_id, :amount, :status, :created_at, :updated_at)`,
		row)
	return errors.Wrap(err, "recording provisional enrollment")
}

// transition moves id from one of the from statuses to to, reporting whether it did.
func (j *journal) transition(ctx context.Context, id string, from []string, to string) (bool, error) {
	query, args, err := sqlx.In(`
		UPDATE provisional_enrollment SET status = ?, updated_at = ?
		WHERE id = ? AND status IN (?)`,
		to, j.now().UTC(), id, from)
	if err != nil {
		return false, err
	}
	res, err := j.db.ExecContext(ctx, j.db.Rebind(query), args...)
	if err != nil {
		return false, errors.Wrapf(err, "moving provisional enrollment %s to %s", id, to)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	var found bool
	err = j.db.GetContext(ctx, &found, `SELECT true FROM provisional_enrollment WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, enrollment.ErrNotFound
	}
	return false, err
}

func (j *journal) Claim(ctx context.Context, id string) (bool, error) {
	return j.transition(ctx, id, []string{enrollment.StatusPending}, enrollment.StatusCompensating)
}

func (j *journal) Release(ctx context.Context, id string) error {
	_, err := j.transition(ctx, id, []string{enrollment.StatusCompensating}, enrollment.StatusPending)
	return err
}

func (j *journal) Settle(ctx context.Context, id string) error {
	ok, err := j.transition(ctx, id, []string{enrollment.StatusPending}, enrollment.StatusSettled)
	if err == nil && !ok {
		return enrollment.ErrNotPending
	}
	return err
}

func (j *journal) Compensated(ctx context.Context, id string) error {
	_, err := j.transition(
		ctx,
		id,
		[]string{enrollment.StatusCompensating, enrollment.StatusSettled},
		enrollment.StatusCompensated,
	)
	return err
}

func (j *journal) Stale(ctx context.Context, before time.Time) ([]enrollment.Provisional, error) {
	var rows []provisionalRow
	err := j.db.SelectContext(ctx, &rows, `
		SELECT * FROM provisional_enrollment
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`,
		enrollment.StatusPending, before.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "listing stale provisional enrollments")
	}
	stale := make([]enrollment.Provisional, 0, len(rows))
	for _, r := range rows {
		stale = append(stale, r.model())
	}
	return stale, nil
}

// Get returns the record with the given id.
func (j *journal) Get(ctx context.Context, id string) (enrollment.Provisional, error) {
	var row provisionalRow
	err := j.db.GetContext(ctx, &row, `SELECT * FROM provisional_enrollment WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return enrollment.Provisional{}, enrollment.ErrNotFound
	}
	return row.model(), errors.Wrap(err, "getting provisional enrollment")
}
