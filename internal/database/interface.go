package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/CosmoTheDev/coursewatch/internal/config"
)

// DB is the storage interface behind the sqlite and mysql record backends.
type DB interface {
	// Select executes a query and scans rows into dest (slice pointer).
	Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// Get executes a query expected to return a single row and scans into dest.
	Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...interface{}) error

	// Upsert inserts or updates based on conflictCols. When every column is a
	// conflict column an existing row is left untouched.
	Upsert(ctx context.Context, table string, record interface{}, conflictCols []string) error

	// InTx runs fn inside a transaction. fn receives a DB bound to it; the
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx DB) error) error

	// Migrate applies pending schema migrations in order.
	Migrate(ctx context.Context) error

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error

	// Close releases the database connection.
	Close() error

	// Driver returns the backend name: "sqlite" or "mysql".
	Driver() string
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// New returns a DB implementation matching cfg.Driver.
func New(cfg config.StoreConfig) (DB, error) {
	switch cfg.Driver {
	case "mysql":
		return NewMySQL(cfg)
	case "sqlite", "sqlite3":
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (supported: sqlite, mysql)", cfg.Driver)
	}
}

// runTx is the shared InTx body; wrap binds the transaction to a DB value.
func runTx(ctx context.Context, db *sql.DB, wrap func(*sql.Tx) DB, fn func(DB) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(wrap(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
