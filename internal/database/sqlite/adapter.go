package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Rana718/pharmaseed/internal/database/common"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names registered by the two SQLite drivers.
const (
	DriverCgo  = "sqlite3"
	DriverPure = "sqlite"
)

type Adapter struct {
	db     *sql.DB
	driver string
	path   string
}

func New(driver string) *Adapter {
	if driver == "" {
		driver = DriverCgo
	}
	return &Adapter{driver: driver}
}

// Connect opens the database file. The populator is single threaded, so the pool is
// pinned to one connection; that also keeps ":memory:" databases alive across calls.
func (s *Adapter) Connect(ctx context.Context, path string) error {
	s.path = strings.TrimPrefix(path, "sqlite://")

	db, err := sql.Open(s.driver, s.path)
	if err != nil {
		return fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}

	s.db = db
	return nil
}

func (s *Adapter) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Adapter) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the file the adapter is connected to.
func (s *Adapter) Path() string {
	return s.path
}

// Exec runs a statement and returns the number of affected rows.
func (s *Adapter) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &common.SQLExecutionError{Statement: query, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// ExecScript runs every statement of a multi-statement script inside one transaction.
func (s *Adapter) ExecScript(ctx context.Context, script string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range common.ParseSQLStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &common.SQLExecutionError{Statement: stmt, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit script: %w", err)
	}
	return nil
}

// Query returns every row of the result set keyed by column name.
func (s *Adapter) Query(ctx context.Context, query string, args ...interface{}) (*common.QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &common.SQLExecutionError{Statement: query, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, &common.SQLExecutionError{Statement: query, Err: err}
	}

	return &common.QueryResult{
		Columns: columns,
		Rows:    results,
	}, nil
}

// QueryScalar returns the first column of the first row, or nil when there is no row.
func (s *Adapter) QueryScalar(ctx context.Context, query string, args ...interface{}) (interface{}, error) {
	var value interface{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &common.SQLExecutionError{Statement: query, Err: err}
	}
	if b, ok := value.([]byte); ok {
		return string(b), nil
	}
	return value, nil
}
