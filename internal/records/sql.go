package records

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/database"
	"github.com/CosmoTheDev/coursewatch/models"
)

type classRow struct {
	Class     string `db:"class"`
	UpdatedAt string `db:"updated_at"`
}

type recordRow struct {
	Class    string `db:"class"`
	RecordID string `db:"record_id"`
	Seq      int    `db:"seq"`
	Payload  string `db:"payload"`
}

// SQLBackend stores records in the sqlite or mysql database behind db.
type SQLBackend struct {
	db database.DB
}

// NewSQLBackend wraps an already migrated database.
func NewSQLBackend(db database.DB) *SQLBackend {
	return &SQLBackend{db: db}
}

func (s *SQLBackend) Describe() string { return s.db.Driver() }

func (s *SQLBackend) Close() error { return s.db.Close() }

func (s *SQLBackend) Load(ctx context.Context, class models.Class) ([]json.RawMessage, bool, error) {
	var classes []classRow
	if err := s.db.Select(ctx, &classes,
		`SELECT class, updated_at FROM record_classes WHERE class = ?`, string(class)); err != nil {
		return nil, false, fmt.Errorf("loading %s class state: %w", class, err)
	}
	if len(classes) == 0 {
		return nil, false, nil
	}

	var rows []recordRow
	if err := s.db.Select(ctx, &rows,
		`SELECT class, record_id, seq, payload FROM records WHERE class = ? ORDER BY seq`, string(class)); err != nil {
		return nil, false, fmt.Errorf("loading %s records: %w", class, err)
	}
	items := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		if !json.Valid([]byte(r.Payload)) {
			return nil, false, fmt.Errorf("%w: %s record %s holds invalid JSON", ErrCorrupt, class, r.RecordID)
		}
		items = append(items, json.RawMessage(r.Payload))
	}
	return items, true, nil
}

// Save upserts every item and marks the class initialized in one
// transaction. Records absent from items are left in place; callers only
// ever pass a superset of what was loaded.
func (s *SQLBackend) Save(ctx context.Context, class models.Class, items []json.RawMessage) error {
	rows := make([]recordRow, 0, len(items))
	for i, raw := range items {
		var head struct {
			ID models.ID `json:"id"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return fmt.Errorf("reading id of %s record %d: %w", class, i, err)
		}
		rows = append(rows, recordRow{
			Class:    string(class),
			RecordID: string(head.ID),
			Seq:      i,
			Payload:  string(raw),
		})
	}

	return s.db.InTx(ctx, func(tx database.DB) error {
		for _, r := range rows {
			if err := tx.Upsert(ctx, "records", r, []string{"class", "record_id"}); err != nil {
				return fmt.Errorf("upserting record %s: %w", r.RecordID, err)
			}
		}
		state := classRow{Class: string(class), UpdatedAt: time.Now().UTC().Format(time.RFC3339)}
		if err := tx.Upsert(ctx, "record_classes", state, []string{"class"}); err != nil {
			return fmt.Errorf("marking %s initialized: %w", class, err)
		}
		return nil
	})
}
