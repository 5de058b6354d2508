package sequence

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/squirrel"
	"github.com/Rana718/pharmaseed/internal/database"
	"github.com/Rana718/pharmaseed/internal/database/common"
)

const primaryKeyTable = "Z_PRIMARYKEY"

// PrimaryKeyTable reads and writes CoreData's Z_PRIMARYKEY bookkeeping. Counters are
// keyed by entity name (ZVISIT is stored as "Visit"), matched case-insensitively.
type PrimaryKeyTable struct {
	store database.Store
	qb    squirrel.StatementBuilderType
}

func NewPrimaryKeyTable(store database.Store) *PrimaryKeyTable {
	return &PrimaryKeyTable{
		store: store,
		qb:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

func byName(entity string) squirrel.Sqlizer {
	return squirrel.Expr("upper(Z_NAME) = upper(?)", entity)
}

func (p *PrimaryKeyTable) Get(ctx context.Context, entity string) (int64, error) {
	return p.lookup(ctx, "Z_MAX", entity)
}

func (p *PrimaryKeyTable) Set(ctx context.Context, entity string, last int64) error {
	query, args, err := p.qb.Update(primaryKeyTable).Set("Z_MAX", last).Where(byName(entity)).ToSql()
	if err != nil {
		return err
	}
	n, err := p.store.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return &UnknownTableError{Table: entity}
	}
	return nil
}

// EntityNumber returns Z_ENT, the value CoreData stores in every row's Z_ENT column.
func (p *PrimaryKeyTable) EntityNumber(ctx context.Context, entity string) (int64, error) {
	return p.lookup(ctx, "Z_ENT", entity)
}

func (p *PrimaryKeyTable) lookup(ctx context.Context, column, entity string) (int64, error) {
	query, args, err := p.qb.Select(column).From(primaryKeyTable).Where(byName(entity)).Limit(1).ToSql()
	if err != nil {
		return 0, err
	}
	v, err := p.store.QueryScalar(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, &UnknownTableError{Table: entity}
	}
	n, err := common.ToInt64(v)
	if err != nil {
		return 0, fmt.Errorf("%s.%s for %s: %w", primaryKeyTable, column, entity, err)
	}
	return n, nil
}

// MemoryCounters is an in-process Counters used in tests and dry runs.
type MemoryCounters struct {
	mu   sync.Mutex
	last map[string]int64
}

func NewMemoryCounters(initial map[string]int64) *MemoryCounters {
	m := &MemoryCounters{last: make(map[string]int64, len(initial))}
	for k, v := range initial {
		m.last[k] = v
	}
	return m
}

func (m *MemoryCounters) Get(_ context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.last[table]
	if !ok {
		return 0, &UnknownTableError{Table: table}
	}
	return v, nil
}

func (m *MemoryCounters) Set(_ context.Context, table string, last int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.last[table]; !ok {
		return &UnknownTableError{Table: table}
	}
	m.last[table] = last
	return nil
}

var (
	_ Counters = (*PrimaryKeyTable)(nil)
	_ Counters = (*MemoryCounters)(nil)
)
