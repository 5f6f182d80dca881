// Package reconcile compares the portal's current events with the persisted
// record set of each class, notifies the user about new eligible events and
// saves the grown record set.
//
// A class whose record set does not exist yet is bootstrapped: every current
// event is recorded, and a single confirmation message is sent in place of
// per-event notifications. A run that fails part way saves nothing for the
// class it was working on.
package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/notify"
	"github.com/CosmoTheDev/coursewatch/internal/portal"
	"github.com/CosmoTheDev/coursewatch/models"
)

// Label and separator used in message subjects and bodies.
const (
	subjectSep    = "："
	publishLabel  = "发布时间："
	deadlineLabel = "截止时间："
	personalTag   = "个人事件"
	bootstrapHead = "[coursewatch] "
)

// NoticeSource provides the notice stream and assignment pages it links to.
type NoticeSource interface {
	FetchNotices(ctx context.Context) (*portal.NoticeStream, error)
	NoticeDetail(ctx context.Context, uri string) (string, error)
}

// CalendarSource provides calendar events and their submission pages.
type CalendarSource interface {
	FetchCalendar(ctx context.Context, from, to time.Time) ([]portal.CalendarEntry, error)
	CalendarDetail(ctx context.Context, id models.ID) (string, error)
}

// Extractor turns portal markup into plain text.
type Extractor interface {
	Title(markup string) string
	Body(markup string) string
	Submitted(page string) (bool, error)
	Instruction(page string) string
}

// RecordStore persists the records of one class.
type RecordStore[T models.Record] interface {
	Load(ctx context.Context) (recs []T, exists bool, err error)
	Save(ctx context.Context, recs []T) error
}

// Result summarises one reconciliation of a class.
type Result struct {
	Class     models.Class
	Bootstrap bool
	Known     int // events already in the record set
	New       int // events recorded by this run
	Notified  int
	Ignored   int // new events not eligible for notification
	Skipped   int // eligible events not delivered (degraded channel or dry run)
	// Degraded is true once the channel has reported a quota limit during
	// this invocation. It is passed on to the next class.
	Degraded bool
	Saved    bool
}

// deliver sends msg unless the channel is already degraded. Only a hard
// failure is returned.
func (r *Result) deliver(ctx context.Context, n notify.Notifier, msg notify.Message) error {
	if r.Degraded {
		r.Skipped++
		slog.Info("Notification skipped, channel degraded", "class", r.Class, "subject", msg.Subject)
		return nil
	}
	out, err := n.Notify(ctx, msg)
	if err != nil {
		return err
	}
	switch out {
	case notify.Delivered:
		r.Notified++
	case notify.Degraded:
		r.Degraded = true
		r.Skipped++
	default:
		r.Skipped++
	}
	return nil
}

// aliasFor resolves the display name of course. Lookups are
// case-insensitive; alias keys are stored lower-cased.
func aliasFor(alias map[string]string, course string) string {
	if a, ok := alias[strings.ToLower(course)]; ok && a != "" {
		return a
	}
	return course
}

// subject joins prefix, course and title, omitting the separator when the
// course is empty.
func subject(prefix, course, title string) string {
	if course == "" {
		return prefix + title
	}
	return prefix + course + subjectSep + title
}

// appendLine adds line to text on a new line when line is not empty.
func appendLine(text, line string) string {
	if line == "" {
		return text
	}
	return text + "\n" + line
}
