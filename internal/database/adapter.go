package database

import (
	"context"

	"github.com/Rana718/pharmaseed/internal/database/common"
)

// SQLExecutionError is returned when the store rejects a statement.
type SQLExecutionError = common.SQLExecutionError

// QueryResult is a fully materialized result set.
type QueryResult = common.QueryResult

// Store is the capability the populator needs from the backing database.
type Store interface {
	Exec(ctx context.Context, query string, args ...interface{}) (int64, error)
	Query(ctx context.Context, query string, args ...interface{}) (*common.QueryResult, error)
	QueryScalar(ctx context.Context, query string, args ...interface{}) (interface{}, error)
	TableExists(ctx context.Context, tableName string) (bool, error)
	Close() error
}

// ScriptRunner is implemented by stores that can execute multi-statement scripts.
type ScriptRunner interface {
	ExecScript(ctx context.Context, script string) error
}

// ColumnChecker is implemented by stores that can introspect table columns.
type ColumnChecker interface {
	ColumnExists(ctx context.Context, tableName, columnName string) (bool, error)
}
