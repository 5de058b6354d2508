// Package sequence hands out CoreData surrogate keys (Z_PK) from the per-entity
// counters kept in Z_PRIMARYKEY.
package sequence

import (
	"context"
	"fmt"
)

// UnknownTableError is returned when no counter exists for a table.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("no primary key counter for table %s", e.Table)
}

// Counters is the persisted "last used key" per table.
type Counters interface {
	Get(ctx context.Context, table string) (int64, error)
	Set(ctx context.Context, table string, last int64) error
}

// Allocator reserves blocks of consecutive keys. It never writes a counter until the
// caller commits.
type Allocator struct {
	counters Counters
}

func NewAllocator(counters Counters) *Allocator {
	return &Allocator{counters: counters}
}

// Allocate returns count consecutive keys starting right after the stored counter.
func (a *Allocator) Allocate(ctx context.Context, table string, count int) ([]int64, error) {
	if count <= 0 {
		return nil, fmt.Errorf("allocate %s: count must be positive, got %d", table, count)
	}
	last, err := a.counters.Get(ctx, table)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, count)
	for i := range ids {
		ids[i] = last + int64(i) + 1
	}
	return ids, nil
}

// Commit advances the table counter to lastID.
func (a *Allocator) Commit(ctx context.Context, table string, lastID int64) error {
	if err := a.counters.Set(ctx, table, lastID); err != nil {
		return fmt.Errorf("commit %s counter: %w", table, err)
	}
	return nil
}
