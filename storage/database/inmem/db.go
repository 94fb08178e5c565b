package inmemdb

import (
	"sync"

	"github.com/trezcool/masomo/portal/core/enrollment"
)

type (
	DB struct {
		provisional *provisionalTable
	}

	provisionalTable struct {
		sync.RWMutex
		table map[string]*enrollment.Provisional
	}
)

func Open() *DB {
	return &DB{
		provisional: &provisionalTable{table: make(map[string]*enrollment.Provisional)},
	}
}
