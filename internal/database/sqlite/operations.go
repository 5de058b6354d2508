package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// TableExists reports whether the schema has a table with the given name.
func (s *Adapter) TableExists(ctx context.Context, tableName string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND upper(name) = upper(?)",
		tableName).Scan(&exists)
	return exists, err
}

// ColumnExists reports whether tableName has a column named columnName (case-insensitive,
// as SQLite itself treats identifiers).
func (s *Adapter) ColumnExists(ctx context.Context, tableName, columnName string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(\"%s\")", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull int
		var defaultValue sql.NullString
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, columnName) {
			return true, nil
		}
	}
	return false, rows.Err()
}
