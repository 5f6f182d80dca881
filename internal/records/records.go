// Package records persists the processed-record set of each event class.
//
// A class with no persisted set is in bootstrap mode. Saving a set, even an
// empty one, moves the class to steady state.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/CosmoTheDev/coursewatch/internal/config"
	"github.com/CosmoTheDev/coursewatch/internal/database"
	"github.com/CosmoTheDev/coursewatch/models"
)

// ErrCorrupt is returned when a persisted record set cannot be read back.
var ErrCorrupt = errors.New("record store corrupt")

// Backend stores the encoded records of each class.
type Backend interface {
	// Load returns the encoded records of class in saved order. exists is
	// false when the class has never been saved.
	Load(ctx context.Context, class models.Class) (items []json.RawMessage, exists bool, err error)
	// Save replaces the persisted set of class with items atomically.
	Save(ctx context.Context, class models.Class, items []json.RawMessage) error
	// Describe names the backend location for logs and doctor output.
	Describe() string
	Close() error
}

// Open returns the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileBackend(cfg.Dir), nil
	case "sqlite", "sqlite3", "mysql":
		db, err := database.New(cfg)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating record database: %w", err)
		}
		return NewSQLBackend(db), nil
	default:
		return nil, fmt.Errorf("%w: unsupported store driver %q", config.ErrInvalid, cfg.Driver)
	}
}

// Store is the typed view of one class in a Backend.
type Store[T models.Record] struct {
	backend Backend
	class   models.Class
}

// NewStore binds class in backend to record type T.
func NewStore[T models.Record](backend Backend, class models.Class) *Store[T] {
	return &Store[T]{backend: backend, class: class}
}

// Class returns the event class this store holds.
func (s *Store[T]) Class() models.Class { return s.class }

// Load returns the persisted records. exists is false in bootstrap mode, in
// which case recs is empty.
func (s *Store[T]) Load(ctx context.Context) (recs []T, exists bool, err error) {
	items, exists, err := s.backend.Load(ctx, s.class)
	if err != nil {
		return nil, false, err
	}
	recs = make([]T, 0, len(items))
	for i, raw := range items {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, false, fmt.Errorf("%w: %s record %d: %v", ErrCorrupt, s.class, i, err)
		}
		recs = append(recs, rec)
	}
	return recs, exists, nil
}

// Save replaces the persisted set with recs.
func (s *Store[T]) Save(ctx context.Context, recs []T) error {
	items := make([]json.RawMessage, 0, len(recs))
	for _, rec := range recs {
		raw, err := encode(rec)
		if err != nil {
			return fmt.Errorf("encoding %s record %s: %w", s.class, rec.RecordID(), err)
		}
		items = append(items, raw)
	}
	if err := s.backend.Save(ctx, s.class, items); err != nil {
		return fmt.Errorf("saving %s records: %w", s.class, err)
	}
	return nil
}

// encode marshals v without HTML escaping so record files stay readable.
func encode(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
