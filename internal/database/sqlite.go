package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/config"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteDB implements DB using SQLite via mattn/go-sqlite3.
type SQLiteDB struct {
	db   *sql.DB
	q    querier
	path string
}

// NewSQLite opens (or creates) the SQLite database at cfg.Path.
func NewSQLite(cfg config.StoreConfig) (*SQLiteDB, error) {
	path := cfg.Path
	if path == "" {
		path = config.DefaultDBFile
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	s := &SQLiteDB{db: db, q: db, path: path}
	if err := s.Ping(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	return s, nil
}

func (s *SQLiteDB) Driver() string { return "sqlite" }

// Path returns the database file path.
func (s *SQLiteDB) Path() string { return s.path }

func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate applies all *.sql files from migrations/ in sorted order,
// using a migrations table to track what has been applied.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		filename    TEXT    NOT NULL UNIQUE,
		applied_at  TEXT    NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}

	for _, name := range names {
		var count int
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE filename = ?`, name)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		slog.Debug("Applied migration", "file", name)
	}
	return nil
}

// Select executes query and scans all rows into dest (must be a pointer to a slice of structs).
func (s *SQLiteDB) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows, dest)
}

// Get executes query and scans a single row into dest.
func (s *SQLiteDB) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	row := s.q.QueryRowContext(ctx, query, args...)
	return scanRow(row, dest)
}

// Exec executes a statement that returns no rows.
func (s *SQLiteDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := s.q.ExecContext(ctx, query, args...)
	return err
}

// Upsert inserts or updates based on conflictCols using ON CONFLICT.
func (s *SQLiteDB) Upsert(ctx context.Context, table string, record interface{}, conflictCols []string) error {
	cols, placeholders, vals := structToInsert(record)
	updateCols := make([]string, 0, len(cols))
	for _, c := range cols {
		if !contains(conflictCols, c) {
			updateCols = append(updateCols, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	action := "DO NOTHING"
	if len(updateCols) > 0 {
		action = "DO UPDATE SET " + strings.Join(updateCols, ", ")
	}

	// Internal DB helper: SQL identifiers are constructed from trusted struct tags/inputs; values are parameterized.
	// nosemgrep: go.lang.security.audit.database.string-formatted-query.string-formatted-query
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) %s",
		table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(conflictCols, ", "),
		action,
	)
	_, err := s.q.ExecContext(ctx, query, vals...)
	return err
}

// InTx runs fn in a transaction.
func (s *SQLiteDB) InTx(ctx context.Context, fn func(tx DB) error) error {
	return runTx(ctx, s.db, func(tx *sql.Tx) DB {
		return &SQLiteDB{db: s.db, q: tx, path: s.path}
	}, fn)
}

func migrationNames() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
