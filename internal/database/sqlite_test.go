package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/CosmoTheDev/coursewatch/internal/config"
)

type testRow struct {
	Class    string `db:"class"`
	RecordID string `db:"record_id"`
	Seq      int    `db:"seq"`
	Payload  string `db:"payload"`
}

type countRow struct {
	N int `db:"n"`
}

func newTestDB(t *testing.T) DB {
	t.Helper()
	db, err := New(config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func TestMigrateIsRepeatable(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestUpsertUpdatesNonConflictColumns(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	if err := db.Upsert(ctx, "records", testRow{"notice", "_1_1", 0, `{"id":"_1_1"}`}, []string{"class", "record_id"}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := db.Upsert(ctx, "records", testRow{"notice", "_1_1", 3, `{"id":"_1_1","title":"x"}`}, []string{"class", "record_id"}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var rows []testRow
	if err := db.Select(ctx, &rows, `SELECT class, record_id, seq, payload FROM records`); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 || rows[0].Seq != 3 || rows[0].Payload != `{"id":"_1_1","title":"x"}` {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	boom := errors.New("boom")

	err := db.InTx(ctx, func(tx DB) error {
		if err := tx.Upsert(ctx, "records", testRow{"notice", "_2_1", 0, "{}"}, []string{"class", "record_id"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	var row countRow
	if err := db.Get(ctx, &row, `SELECT COUNT(*) AS n FROM records`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if row.N != 0 {
		t.Fatalf("expected rollback to leave 0 rows, found %d", row.N)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(config.StoreConfig{Driver: "postgres"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- note\nCREATE TABLE b (y INT);\n")
	if len(stmts) != 2 || stmts[0] != "CREATE TABLE a (x INT)" || stmts[1] != "CREATE TABLE b (y INT)" {
		t.Fatalf("unexpected statements: %q", stmts)
	}
}
