// Package storeopen selects a store.Store backend by driver name.
package storeopen

import (
	"context"
	"fmt"
	"strings"

	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/store/bolt"
	"github.com/cleared-dev/ledger/internal/store/memory"
	"github.com/cleared-dev/ledger/internal/store/postgres"
	"github.com/cleared-dev/ledger/internal/store/sqlite"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

// Drivers lists the supported driver names.
var Drivers = []string{DriverMemory, DriverSQLite, DriverPostgres, DriverBolt}

// Open returns the backend named by driver. dsn is a file path for sqlite
// and bolt, a connection string for postgres, and ignored for memory.
func Open(ctx context.Context, driver, dsn string) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMemory:
		return memory.New(), nil
	case DriverSQLite, "sqlite3":
		if dsn == "" {
			return nil, fmt.Errorf("sqlite store requires a database path")
		}
		return sqlite.Open(dsn)
	case DriverPostgres, "postgresql":
		if dsn == "" {
			return nil, fmt.Errorf("postgres store requires a connection string")
		}
		return postgres.Open(ctx, dsn)
	case DriverBolt, "bbolt":
		if dsn == "" {
			return nil, fmt.Errorf("bolt store requires a database path")
		}
		return bolt.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q (want one of %s)", driver, strings.Join(Drivers, ", "))
	}
}
