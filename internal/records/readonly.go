package records

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/CosmoTheDev/coursewatch/models"
)

// ReadOnly wraps a Backend and discards every Save. Used by dry runs.
type ReadOnly struct {
	Backend
}

func (r ReadOnly) Save(_ context.Context, class models.Class, items []json.RawMessage) error {
	slog.Info("Dry run: record save skipped", "class", class, "records", len(items), "store", r.Backend.Describe())
	return nil
}

func (r ReadOnly) Describe() string { return r.Backend.Describe() + " (read-only)" }
