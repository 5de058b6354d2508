package database

import (
	"context"
	"fmt"

	"github.com/Rana718/pharmaseed/internal/database/sqlite"
)

// Open connects to the SQLite file at path using the named driver
// ("sqlite3" for mattn/go-sqlite3, "sqlite" for the pure Go driver).
func Open(ctx context.Context, driver, path string) (*sqlite.Adapter, error) {
	switch driver {
	case "", sqlite.DriverCgo, sqlite.DriverPure:
	default:
		return nil, fmt.Errorf("unsupported sqlite driver: %s", driver)
	}

	adapter := sqlite.New(driver)
	if err := adapter.Connect(ctx, path); err != nil {
		return nil, err
	}
	return adapter, nil
}

var (
	_ Store         = (*sqlite.Adapter)(nil)
	_ ScriptRunner  = (*sqlite.Adapter)(nil)
	_ ColumnChecker = (*sqlite.Adapter)(nil)
)
