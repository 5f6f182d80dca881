package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID identifies a portal event within its class. The portal emits string ids
// ("_12345_1") but older record files may carry bare numbers, so both decode.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("event id is null")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("event id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Record is implemented by every persisted record type.
type Record interface {
	RecordID() ID
}

// NoticeRecord is the normalized form of one notice-stream entry.
type NoticeRecord struct {
	ID      ID     `json:"id"`
	Time    string `json:"time"`    // publish time, display format
	Course  string `json:"course"`  // semester suffix already stripped
	Title   string `json:"title"`
	Content string `json:"content"`
	Event   string `json:"event"` // portal event type, e.g. "AS:AS_AVAIL"
	// ShouldNotify is the eligibility decision made when the record was created.
	ShouldNotify bool `json:"should_notify"`
}

func (r NoticeRecord) RecordID() ID { return r.ID }

// AssignmentRecord is the normalized form of one calendar entry.
type AssignmentRecord struct {
	ID          ID     `json:"id"`
	Time        string `json:"time"` // deadline, display format
	Course      string `json:"course"`
	Title       string `json:"title"`
	Description string `json:"description"`
	// HasAttempted is true when the assignment was already submitted.
	HasAttempted bool `json:"has_attempted"`
}

func (r AssignmentRecord) RecordID() ID { return r.ID }

// Eligible reports whether the record should be delivered to the user.
func (r AssignmentRecord) Eligible() bool { return !r.HasAttempted }

// IDSet collects the ids of recs.
func IDSet[T Record](recs []T) map[ID]struct{} {
	set := make(map[ID]struct{}, len(recs))
	for _, r := range recs {
		set[r.RecordID()] = struct{}{}
	}
	return set
}
