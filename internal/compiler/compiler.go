// Package compiler turns a batch of generated rows into a single INSERT ... SELECT ...
// UNION ALL SELECT ... statement with bound parameters.
package compiler

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/Rana718/pharmaseed/internal/spec"
)

// MaxCompoundSelect is SQLite's default SQLITE_MAX_COMPOUND_SELECT: the most SELECT
// terms one compound statement may have.
const MaxCompoundSelect = 500

// Compile builds one multi-row insert. The first row names every column
// ("SELECT ? AS c1, ? AS c2"), the following rows contribute "UNION ALL SELECT ?, ?".
func Compile(table string, columns []string, rows [][]interface{}) (string, []interface{}, error) {
	if !spec.IsValidIdentifier(table) {
		return "", nil, fmt.Errorf("invalid table name: %s", table)
	}
	if len(columns) == 0 {
		return "", nil, &spec.TemplateSubstitutionError{Msg: fmt.Sprintf("insert into %s has no columns", table)}
	}
	for _, col := range columns {
		if !spec.IsValidIdentifier(col) {
			return "", nil, fmt.Errorf("invalid column name: %s", col)
		}
	}
	if len(rows) == 0 {
		return "", nil, &spec.TemplateSubstitutionError{Msg: fmt.Sprintf("insert into %s has no rows", table)}
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, &spec.TemplateSubstitutionError{
				Msg: fmt.Sprintf("row %d of %s has %d values for %d columns", i, table, len(row), len(columns)),
			}
		}
	}

	first := squirrel.Select()
	for i, col := range columns {
		first = first.Column(squirrel.Alias(squirrel.Expr("?", rows[0][i]), col))
	}

	marks := "UNION ALL SELECT " + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	for _, row := range rows[1:] {
		first = first.Suffix(marks, row...)
	}

	return squirrel.Insert(table).
		Columns(columns...).
		Select(first).
		PlaceholderFormat(squirrel.Question).
		ToSql()
}

// Chunk splits rows into consecutive batches of at most size rows, preserving order.
func Chunk(rows [][]interface{}, size int) [][][]interface{} {
	if size <= 0 || size > MaxCompoundSelect {
		size = MaxCompoundSelect
	}
	var chunks [][][]interface{}
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}
