package extract

import (
	"fmt"
	"time"
)

// DisplayLayout is how every time is rendered in records and messages.
const DisplayLayout = "2006-01-02 15:04:05"

// naiveLayouts are portal timestamps without a zone; they are read in the
// configured location.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
}

// FormatMillis renders an epoch-millisecond timestamp in loc.
func FormatMillis(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format(DisplayLayout)
}

// ParseTimestamp reads a portal timestamp. Zoned values (RFC 3339, as used by
// notification due dates) keep their zone; naive values (calendar end dates)
// are interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("extract: unrecognised timestamp %q", s)
}

// FormatTimestamp parses s and renders it in loc.
func FormatTimestamp(s string, loc *time.Location) (string, error) {
	t, err := ParseTimestamp(s, loc)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(DisplayLayout), nil
}
