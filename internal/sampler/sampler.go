// Package sampler draws random existing rows from the store so generated records can
// point at plausible foreign keys.
package sampler

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/Rana718/pharmaseed/internal/database"
	"github.com/Rana718/pharmaseed/internal/database/common"
)

// CoreData column names shared by every entity table.
const (
	KeyColumn      = "Z_PK"
	EntityIDColumn = "ZENTITYID"
)

// ReferenceNotFoundError means no row satisfied the sampling filter.
type ReferenceNotFoundError struct {
	Table  string
	Filter string
	Args   []interface{}
}

func (e *ReferenceNotFoundError) Error() string {
	switch {
	case e.Table == "":
		return fmt.Sprintf("no rows returned by %s %v", e.Filter, e.Args)
	case e.Filter == "":
		return fmt.Sprintf("no rows to sample in %s", e.Table)
	}
	return fmt.Sprintf("no rows in %s match %s %v", e.Table, e.Filter, e.Args)
}

// Reference is a sampled row: its local surrogate key and its external identifier.
type Reference struct {
	LocalKey   int64
	ExternalID string
}

// Filter restricts the candidate rows; nil means every row.
type Filter = squirrel.Sqlizer

type Sampler struct {
	store database.Store
	qb    squirrel.StatementBuilderType
}

func New(store database.Store) *Sampler {
	return &Sampler{
		store: store,
		qb:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Builder exposes the statement builder so callers can describe joined projections
// for Rows.
func (s *Sampler) Builder() squirrel.StatementBuilderType {
	return s.qb
}

// Sample returns between 1 and count references drawn uniformly from table rows that
// match filter. The same row may come back for different calls.
func (s *Sampler) Sample(ctx context.Context, table string, filter Filter, count int) ([]Reference, error) {
	q := s.qb.Select(KeyColumn, EntityIDColumn).From(table)
	if filter != nil {
		q = q.Where(filter)
	}
	res, err := s.Rows(ctx, q, count)
	if err != nil {
		return nil, notFoundIn(err, table, filter)
	}

	refs := make([]Reference, res.Len())
	for i := range refs {
		key, err := res.Int64(i, KeyColumn)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", table, err)
		}
		refs[i] = Reference{LocalKey: key, ExternalID: res.String(i, EntityIDColumn)}
	}
	return refs, nil
}

// One samples a single reference.
func (s *Sampler) One(ctx context.Context, table string, filter Filter) (Reference, error) {
	refs, err := s.Sample(ctx, table, filter, 1)
	if err != nil {
		return Reference{}, err
	}
	return refs[0], nil
}

// Keys samples up to count surrogate keys from table. It is what the update path uses:
// asking for more rows than exist returns every matching row.
func (s *Sampler) Keys(ctx context.Context, table string, filter Filter, count int) ([]int64, error) {
	q := s.qb.Select(KeyColumn).From(table)
	if filter != nil {
		q = q.Where(filter)
	}
	res, err := s.Rows(ctx, q, count)
	if err != nil {
		return nil, notFoundIn(err, table, filter)
	}

	keys := make([]int64, res.Len())
	for i := range keys {
		if keys[i], err = res.Int64(i, KeyColumn); err != nil {
			return nil, fmt.Errorf("sample %s: %w", table, err)
		}
	}
	return keys, nil
}

// First returns the row of q with the lowest surrogate key. It is for singleton
// context such as the current user, where the same row must come back every time.
func (s *Sampler) First(ctx context.Context, q squirrel.SelectBuilder) (*common.QueryResult, error) {
	query, args, err := q.OrderBy(KeyColumn).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build first-row query: %w", err)
	}
	res, err := s.store.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if res.Len() == 0 {
		return nil, &ReferenceNotFoundError{Filter: query, Args: args}
	}
	return res, nil
}

// Rows runs q in random order limited to count rows. Zero rows is a
// ReferenceNotFoundError.
func (s *Sampler) Rows(ctx context.Context, q squirrel.SelectBuilder, count int) (*common.QueryResult, error) {
	if count < 1 {
		count = 1
	}
	query, args, err := q.OrderBy("RANDOM()").Limit(uint64(count)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sample query: %w", err)
	}
	res, err := s.store.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if res.Len() == 0 {
		return nil, &ReferenceNotFoundError{Filter: query, Args: args}
	}
	return res, nil
}

// Values samples up to count values of a single column.
func (s *Sampler) Values(ctx context.Context, q squirrel.SelectBuilder, column string, count int) ([]string, error) {
	res, err := s.Rows(ctx, q, count)
	if err != nil {
		return nil, err
	}
	values := make([]string, res.Len())
	for i := range values {
		values[i] = res.String(i, column)
	}
	return values, nil
}

// notFoundIn rewrites the generic not-found error raised by Rows so it names the table
// and filter instead of the whole statement.
func notFoundIn(err error, table string, filter Filter) error {
	nf, ok := err.(*ReferenceNotFoundError)
	if !ok {
		return err
	}
	nf.Table = table
	nf.Filter, nf.Args = "", nil
	if filter != nil {
		if sql, args, ferr := filter.ToSql(); ferr == nil {
			nf.Filter, nf.Args = sql, args
		}
	}
	return nf
}
