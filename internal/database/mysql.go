package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/config"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLDB implements DB using MySQL via go-sql-driver/mysql.
type MySQLDB struct {
	db  *sql.DB
	q   querier
	dsn string
}

// NewMySQL opens a MySQL connection using cfg.DSN.
func NewMySQL(cfg config.StoreConfig) (*MySQLDB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql DSN is required when driver is mysql")
	}

	// Record payloads carry CJK text.
	dsn := cfg.DSN
	if !strings.Contains(dsn, "charset") {
		if strings.Contains(dsn, "?") {
			dsn += "&charset=utf8mb4"
		} else {
			dsn += "?charset=utf8mb4"
		}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	m := &MySQLDB{db: db, q: db, dsn: dsn}
	if err := m.Ping(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	return m, nil
}

func (m *MySQLDB) Driver() string { return "mysql" }

func (m *MySQLDB) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQLDB) Close() error {
	return m.db.Close()
}

// Migrate applies pending SQL migrations adapted for MySQL syntax.
func (m *MySQLDB) Migrate(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		id         INT          NOT NULL AUTO_INCREMENT PRIMARY KEY,
		filename   VARCHAR(255) NOT NULL UNIQUE,
		applied_at VARCHAR(64)  NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}

	for _, name := range names {
		var count int
		row := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE filename = ?`, name)
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

		for _, stmt := range splitStatements(mysqlAdapt(string(data))) {
			if _, err := m.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying migration %s statement: %w\nSQL: %s", name, err, stmt)
			}
		}

		_, err = m.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		slog.Debug("Applied migration", "file", name, "driver", "mysql")
	}
	return nil
}

// Select executes query and scans all rows into dest.
func (m *MySQLDB) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	rows, err := m.q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows, dest)
}

// Get executes query and scans a single row.
func (m *MySQLDB) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	row := m.q.QueryRowContext(ctx, query, args...)
	return scanRow(row, dest)
}

// Exec executes a statement returning no rows.
func (m *MySQLDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := m.q.ExecContext(ctx, query, args...)
	return err
}

// Upsert uses INSERT ... ON DUPLICATE KEY UPDATE for MySQL, or INSERT IGNORE
// when there is nothing to update.
func (m *MySQLDB) Upsert(ctx context.Context, table string, record interface{}, conflictCols []string) error {
	cols, placeholders, vals := structToInsert(record)

	updatePairs := make([]string, 0, len(cols))
	for _, c := range cols {
		if !contains(conflictCols, c) {
			updatePairs = append(updatePairs, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
	}

	// Internal DB helper: SQL identifiers are constructed from trusted struct tags/inputs; values are parameterized.
	// nosemgrep: go.lang.security.audit.database.string-formatted-query.string-formatted-query
	var query string
	if len(updatePairs) == 0 {
		query = fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)",
			table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
			table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updatePairs, ", "))
	}
	_, err := m.q.ExecContext(ctx, query, vals...)
	return err
}

// InTx runs fn in a transaction.
func (m *MySQLDB) InTx(ctx context.Context, fn func(tx DB) error) error {
	return runTx(ctx, m.db, func(tx *sql.Tx) DB {
		return &MySQLDB{db: m.db, q: tx, dsn: m.dsn}
	}, fn)
}

// mysqlAdapt converts SQLite-specific SQL fragments to MySQL equivalents.
func mysqlAdapt(sql string) string {
	sql = strings.ReplaceAll(sql, "AUTOINCREMENT", "AUTO_INCREMENT")
	sql = strings.ReplaceAll(sql, "INTEGER PRIMARY KEY AUTO_INCREMENT",
		"INT NOT NULL AUTO_INCREMENT PRIMARY KEY")
	return sql
}

// splitStatements splits a migration file on ';', dropping comment-only and
// empty fragments.
func splitStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(lines, "\n")))
		}
	}
	return out
}
