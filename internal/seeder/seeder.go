// Package seeder walks the populate tree depth first, inserting generated rows and
// marking sampled rows modified, then repeats each node's related objects for every
// row it touched.
package seeder

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/Rana718/pharmaseed/internal/compiler"
	"github.com/Rana718/pharmaseed/internal/database"
	"github.com/Rana718/pharmaseed/internal/generator"
	"github.com/Rana718/pharmaseed/internal/sampler"
	"github.com/Rana718/pharmaseed/internal/sequence"
	"github.com/Rana718/pharmaseed/internal/spec"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

const (
	modifiedColumn = "ZISMODIFIED"
	// keyPlaceholder is filled by the walker with the allocated key, not by generators.
	keyPlaceholder = "pk"
)

type Seeder struct {
	store     database.Store
	registry  *generator.Registry
	env       *generator.Env
	allocator *sequence.Allocator
	sampler   *sampler.Sampler
	qb        squirrel.StatementBuilderType
	log       *zap.Logger
	config    SeedConfig
	checked   map[string]error
}

func NewSeeder(store database.Store, registry *generator.Registry, env *generator.Env, counters sequence.Counters, cfg SeedConfig, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{
		store:     store,
		registry:  registry,
		env:       env,
		allocator: sequence.NewAllocator(counters),
		sampler:   env.Sampler,
		qb:        squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		log:       log,
		config:    cfg,
		checked:   make(map[string]error),
	}
}

// Populate runs every top-level node in declaration order. Node failures are recorded
// in the report and never stop siblings; the returned error is only set when ctx ends
// the run early.
func (s *Seeder) Populate(ctx context.Context, tree *spec.ConfigTree) (*Report, error) {
	report := newReport()
	for _, node := range tree.Data {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.announce(node)
		s.walk(ctx, node, nil, 0, report)
	}
	return report, ctx.Err()
}

func (s *Seeder) announce(node spec.EntitySpec) {
	kinds := strings.Join(node.Kinds(), ", ")
	switch node.Op() {
	case spec.OperationUpdate:
		color.Cyan("🔄 Updating %s (%d %s)", kinds, node.Number, node.Table)
	case spec.OperationInsert:
		color.Cyan("📝 Inserting %s (%d %s)", kinds, node.Number, node.Table)
	default:
		color.Yellow("⚠️  Skipping %s: unknown operation %q", kinds, node.Operation)
	}
}

func (s *Seeder) walk(ctx context.Context, node spec.EntitySpec, parent *generator.Parent, depth int, report *Report) {
	res := &NodeResult{
		Kind:      node.Kind,
		Table:     node.Table,
		Operation: node.Op(),
		Parent:    parent,
		Depth:     depth,
	}
	res.to(StatePending)
	report.add(res)
	log := s.log.With(zap.String("kind", node.Kind), zap.String("table", node.Table), zap.Int("depth", depth))
	if parent != nil {
		log = log.With(zap.Int64("parent_id", parent.ID))
	}

	if node.Number == 0 {
		res.to(StateDone)
		return
	}
	if node.Number < 0 {
		err := &spec.ConfigError{Path: node.Kind, Msg: fmt.Sprintf("negative number %d", node.Number)}
		log.Error("node aborted", zap.Error(err))
		report.abort(res, err)
		return
	}

	var ids []int64
	err := s.preflight(ctx, node)
	switch {
	case err != nil:
	case node.Op() == spec.OperationInsert:
		ids, err = s.insert(ctx, node, parent, res, report)
	case node.Op() == spec.OperationUpdate:
		ids, err = s.update(ctx, node, report)
	default:
		log.Warn("unknown operation, node skipped", zap.String("operation", string(node.Operation)))
		res.to(StateSkipped)
		return
	}
	if err != nil {
		log.Error("node aborted", zap.Error(err))
		report.abort(res, fmt.Errorf("%s (%s): %w", node.Kind, node.Table, err))
		return
	}
	res.Affected = ids
	res.to(StatePersisted)
	log.Debug("node persisted", zap.Int("rows", len(ids)))

	if len(node.RelatedObjects) > 0 {
		for _, id := range ids {
			p := &generator.Parent{ID: id, Table: node.Table, Kind: node.Kind}
			for _, child := range node.RelatedObjects {
				s.walk(ctx, child, p, depth+1, report)
			}
		}
	}
	res.to(StatePropagated)
	res.to(StateDone)
}

// insert allocates keys, generates and renders the rows, writes them in chunks and
// advances the counter past the last chunk that made it into the store.
func (s *Seeder) insert(ctx context.Context, node spec.EntitySpec, parent *generator.Parent, res *NodeResult, report *Report) ([]int64, error) {
	entity := node.EntityName()
	ids, err := s.allocator.Allocate(ctx, entity, node.Number)
	if err != nil {
		return nil, err
	}

	rows, err := s.registry.Generate(ctx, s.env, generator.Request{
		Kind:         node.Kind,
		Count:        node.Number,
		Table:        node.Table,
		Entity:       entity,
		Placeholders: generated(node.ColumnsData.Placeholders()),
		Parent:       parent,
	})
	if err != nil {
		return nil, err
	}
	res.to(StateExpanded)

	columns, values, err := render(node.ColumnsData, ids, rows)
	if err != nil {
		return nil, err
	}

	inserted := 0
	for _, chunk := range compiler.Chunk(values, s.config.Batch) {
		query, args, cerr := compiler.Compile(node.Table, columns, chunk)
		if cerr == nil {
			_, cerr = s.store.Exec(ctx, query, args...)
		}
		if cerr != nil {
			err = cerr
			break
		}
		inserted += len(chunk)
	}
	report.Inserted[node.Table] += inserted

	if inserted > 0 {
		if cerr := s.allocator.Commit(ctx, entity, ids[inserted-1]); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// render turns generated rows into column values. The allocated key goes into Z_PK
// unless the templates set it, and is also offered to templates as %{pk}.
func render(cols spec.Columns, ids []int64, rows []spec.Row) ([]string, [][]interface{}, error) {
	names := cols.Names()
	withKey := true
	for _, n := range names {
		if strings.EqualFold(n, sampler.KeyColumn) {
			withKey = false
		}
	}
	if withKey {
		names = append([]string{sampler.KeyColumn}, names...)
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		row[keyPlaceholder] = ids[i]
		rendered, err := cols.Render(row)
		if err != nil {
			return nil, nil, err
		}
		if withKey {
			rendered = append([]interface{}{ids[i]}, rendered...)
		}
		values[i] = rendered
	}
	return names, values, nil
}

// generated drops the placeholders the walker fills itself.
func generated(placeholders []string) []string {
	out := make([]string, 0, len(placeholders))
	for _, p := range placeholders {
		if p != keyPlaceholder {
			out = append(out, p)
		}
	}
	return out
}

// update marks up to node.Number existing rows modified. Rows in a terminal status are
// excluded from sampling, so the sampled keys are exactly the rows updated.
func (s *Seeder) update(ctx context.Context, node spec.EntitySpec, report *Report) ([]int64, error) {
	gen, err := s.registry.Lookup(node.Kind)
	if err != nil {
		return nil, err
	}
	statusColumn, terminal := gen.StatusColumn, gen.TerminalStatuses
	if node.StatusColumn != "" {
		statusColumn = node.StatusColumn
	}
	if node.TerminalStatuses != nil {
		terminal = node.TerminalStatuses
	}

	var open sampler.Filter
	if statusColumn != "" && len(terminal) > 0 {
		open = squirrel.Or{
			squirrel.Eq{statusColumn: nil},
			squirrel.NotEq{statusColumn: terminal},
		}
	}

	ids, err := s.sampler.Keys(ctx, node.Table, open, node.Number)
	if err != nil {
		return nil, err
	}

	for start := 0; start < len(ids); start += compiler.MaxCompoundSelect {
		end := min(start+compiler.MaxCompoundSelect, len(ids))
		q := s.qb.Update(node.Table).
			Set(modifiedColumn, 1).
			Where(squirrel.Eq{sampler.KeyColumn: ids[start:end]})
		if open != nil {
			q = q.Where(open)
		}
		query, args, err := q.ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build update for %s: %w", node.Table, err)
		}
		n, err := s.store.Exec(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		report.Updated[node.Table] += int(n)
	}
	return ids, nil
}

// preflight checks that the node's table and the columns it writes exist. Results are
// cached because related objects are visited once per parent row.
func (s *Seeder) preflight(ctx context.Context, node spec.EntitySpec) error {
	var columns []string
	switch node.Op() {
	case spec.OperationInsert:
		columns = node.ColumnsData.Names()
	case spec.OperationUpdate:
		columns = []string{modifiedColumn}
		if node.StatusColumn != "" {
			columns = append(columns, node.StatusColumn)
		} else if gen, err := s.registry.Lookup(node.Kind); err == nil && gen.StatusColumn != "" {
			columns = append(columns, gen.StatusColumn)
		}
	default:
		return nil
	}

	key := node.Table + "|" + strings.Join(columns, ",")
	if err, ok := s.checked[key]; ok {
		return err
	}
	err := s.checkColumns(ctx, node, columns)
	s.checked[key] = err
	return err
}

func (s *Seeder) checkColumns(ctx context.Context, node spec.EntitySpec, columns []string) error {
	exists, err := s.store.TableExists(ctx, node.Table)
	if err != nil {
		return fmt.Errorf("failed to check table %s: %w", node.Table, err)
	}
	if !exists {
		return &sequence.UnknownTableError{Table: node.Table}
	}

	checker, ok := s.store.(database.ColumnChecker)
	if !ok {
		return nil
	}
	for _, col := range columns {
		exists, err := checker.ColumnExists(ctx, node.Table, col)
		if err != nil {
			return fmt.Errorf("failed to check column %s.%s: %w", node.Table, col, err)
		}
		if !exists {
			return &spec.ConfigError{Path: node.Kind, Msg: fmt.Sprintf("table %s has no column %s", node.Table, col)}
		}
	}
	return nil
}
