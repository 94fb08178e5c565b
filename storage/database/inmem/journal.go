package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/masomo/portal/core/enrollment"
)

type journal struct {
	db  *provisionalTable
	now func() time.Time
}

var _ enrollment.Journal = (*journal)(nil)

func NewJournal(db *DB) *journal {
	return &journal{db: db.provisional, now: time.Now}
}

func (j *journal) Record(_ context.Context, p enrollment.Provisional) error {
	j.db.Lock()
	defer j.db.Unlock()

	if p.Status == "" {
		p.Status = enrollment.StatusPending
	}
	j.db.table[p.ID] = &p
	return nil
}

func (j *journal) transition(id string, from []string, to string) (bool, error) {
	j.db.Lock()
	defer j.db.Unlock()

	p, ok := j.db.table[id]
	if !ok {
		return false, enrollment.ErrNotFound
	}
	for _, status := range from {
		if p.Status == status {
			p.Status = to
			p.UpdatedAt = j.now().UTC()
			return true, nil
		}
	}
	return false, nil
}

func (j *journal) Claim(_ context.Context, id string) (bool, error) {
	return j.transition(id, []string{enrollment.StatusPending}, enrollment.StatusCompensating)
}

func (j *journal) Release(_ context.Context, id string) error {
	_, err := j.transition(id, []string{enrollment.StatusCompensating}, enrollment.StatusPending)
	return err
}

func (j *journal) Settle(_ context.Context, id string) error {
	ok, err := j.transition(id, []string{enrollment.StatusPending}, enrollment.StatusSettled)
	if err == nil && !ok {
		return enrollment.ErrNotPending
	}
	return err
}

func (j *journal) Compensated(_ context.Context, id string) error {
	_, err := j.transition(
		id,
		[]string{enrollment.StatusCompensating, enrollment.StatusSettled},
		enrollment.StatusCompensated,
	)
	return err
}

func (j *journal) Stale(_ context.Context, before time.Time) ([]enrollment.Provisional, error) {
	j.db.RLock()
	defer j.db.RUnlock()

	stale := make([]enrollment.Provisional, 0)
	for _, p := range j.db.table {
		if p.Status == enrollment.StatusPending && p.CreatedAt.Before(before) {
			stale = append(stale, *p)
		}
	}
	sort.Slice(stale, func(i, k int) bool { return stale[i].CreatedAt.Before(stale[k].CreatedAt) })
	return stale, nil
}

// Get returns a copy of the record with the given id.
func (j *journal) Get(id string) (enrollment.Provisional, bool) {
	j.db.RLock()
	defer j.db.RUnlock()

	if p, ok := j.db.table[id]; ok {
		return *p, true
	}
	return enrollment.Provisional{}, false
}
