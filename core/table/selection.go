package table

import "github.com/pkg/errors"

var ErrNotDisplayed = errors.New("row is not displayed")

// KeyFunc returns the primary key of a row (e.g. userId).
type KeyFunc[R any] func(row R) string

// Selection is a set of selected rows, kept in selection order.
// It never mutates the rows it is given. Not safe for concurrent use.
type Selection[R any] struct {
	key  KeyFunc[R]
	keys []string
	rows map[string]R
}

func NewSelection[R any](key KeyFunc[R]) *Selection[R] {
	return &Selection[R]{key: key, rows: make(map[string]R)}
}

func (s *Selection[R]) Has(key string) bool {
	_, ok := s.rows[key]
	return ok
}

func (s *Selection[R]) Len() int { return len(s.keys) }

// Toggle selects row if unselected, unselects it otherwise.
// It reports whether the row is selected afterwards.
func (s *Selection[R]) Toggle(row R) bool {
	k := s.key(row)
	if s.Has(k) {
		s.remove(k)
		return false
	}
	s.keys = append(s.keys, k)
	s.rows[k] = row
	return true
}

// SelectAll selects every given row, keeping already selected ones.
func (s *Selection[R]) SelectAll(rows []R) {
	for _, row := range rows {
		if k := s.key(row); !s.Has(k) {
			s.keys = append(s.keys, k)
			s.rows[k] = row
		}
	}
}

// RemoveSelectAll clears the selection.
func (s *Selection[R]) RemoveSelectAll() {
	s.keys = nil
	s.rows = make(map[string]R)
}

// Retain drops every selected row whose key is not in rows.
func (s *Selection[R]) Retain(rows []R) {
	present := make(map[string]bool, len(rows))
	for _, row := range rows {
		present[s.key(row)] = true
	}
	kept := s.keys[:0]
	for _, k := range s.keys {
		if present[k] {
			kept = append(kept, k)
		} else {
			delete(s.rows, k)
		}
	}
	s.keys = kept
}

// Keys returns the selected keys in selection order.
func (s *Selection[R]) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Rows returns the selected rows in selection order.
func (s *Selection[R]) Rows() []R {
	rows := make([]R, 0, len(s.keys))
	for _, k := range s.keys {
		rows = append(rows, s.rows[k])
	}
	return rows
}

func (s *Selection[R]) remove(key string) {
	delete(s.rows, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			return
		}
	}
}
