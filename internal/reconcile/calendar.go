package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/config"
	"github.com/CosmoTheDev/coursewatch/internal/extract"
	"github.com/CosmoTheDev/coursewatch/internal/notify"
	"github.com/CosmoTheDev/coursewatch/internal/portal"
	"github.com/CosmoTheDev/coursewatch/models"
)

// lookBehind widens the calendar query into the past so a deadline that
// passed since the previous run is still reported.
const lookBehind = 3 * time.Hour

// Assignments reconciles calendar deadlines.
type Assignments struct {
	Config   config.AssignmentConfig
	Alias    map[string]string
	Source   CalendarSource
	Extract  Extractor
	Notifier notify.Notifier
	Store    RecordStore[models.AssignmentRecord]
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// Run performs one reconciliation. degraded carries the channel state of
// earlier classes in the same invocation.
func (a *Assignments) Run(ctx context.Context, degraded bool) (Result, error) {
	res := Result{Class: models.ClassAssignment, Degraded: degraded}
	if a.Config.AdvanceHours <= 0 {
		return res, fmt.Errorf("%w: assignment.advance_hours must be a positive integer (got %d)",
			config.ErrInvalid, a.Config.AdvanceHours)
	}

	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	cutoff := now.Add(time.Duration(a.Config.AdvanceHours) * time.Hour)

	entries, err := a.Source.FetchCalendar(ctx, now.Add(-lookBehind), cutoff)
	if err != nil {
		return res, fmt.Errorf("fetching calendar: %w", err)
	}

	prior, exists, err := a.Store.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("loading assignment records: %w", err)
	}
	res.Bootstrap = !exists
	known := models.IDSet(prior)

	var fresh []models.AssignmentRecord
	for i := range entries {
		entry := &entries[i]
		if _, ok := known[entry.ID]; ok {
			res.Known++
			continue
		}
		due, err := extract.ParseTimestamp(entry.EndDate, a.Location)
		if err != nil {
			return res, fmt.Errorf("calendar entry %s: %w: %v", entry.ID, portal.ErrMalformed, err)
		}
		// The portal returns some events whose deadline lies beyond the
		// queried range. Past deadlines stay in.
		if due.After(cutoff) {
			slog.Debug("Calendar entry beyond advance window", "id", entry.ID, "title", entry.Title, "due", due)
			continue
		}
		rec, err := a.normalize(ctx, entry, due)
		if err != nil {
			return res, fmt.Errorf("calendar entry %s: %w", entry.ID, err)
		}
		known[rec.ID] = struct{}{}
		fresh = append(fresh, rec)
	}
	res.New = len(fresh)

	if res.Bootstrap {
		msg := notify.Message{
			Subject: bootstrapHead + "日程提醒模块首次运行成功！",
			Body:    "之后就可以自动在作业、事件截止前提醒您了~",
		}
		if err := res.deliver(ctx, a.Notifier, msg); err != nil {
			return res, err
		}
	} else {
		for _, rec := range fresh {
			if !rec.Eligible() {
				res.Ignored++
				slog.Info("Assignment already submitted", "title", rec.Title, "course", rec.Course)
				continue
			}
			if err := res.deliver(ctx, a.Notifier, a.message(rec)); err != nil {
				return res, err
			}
		}
	}

	if res.Bootstrap || len(fresh) > 0 {
		if err := a.Store.Save(ctx, append(prior, fresh...)); err != nil {
			return res, err
		}
		res.Saved = true
	}
	slog.Info("Assignments processed", "new", res.New, "known", res.Known, "bootstrap", res.Bootstrap)
	return res, nil
}

// normalize builds the record for entry. Personal events are always
// eligible and have no submission page.
func (a *Assignments) normalize(ctx context.Context, e *portal.CalendarEntry, due time.Time) (models.AssignmentRecord, error) {
	rec := models.AssignmentRecord{
		ID:          e.ID,
		Time:        due.In(a.Location).Format(extract.DisplayLayout),
		Course:      extract.StripSemester(e.CalendarName),
		Title:       e.Title,
		Description: e.Description,
	}
	if rec.Course != models.PersonalCourse {
		page, err := a.Source.CalendarDetail(ctx, e.ID)
		if err != nil {
			return rec, err
		}
		attempted, err := a.Extract.Submitted(page)
		if err != nil {
			return rec, fmt.Errorf("%w: submission page: %v", portal.ErrMalformed, err)
		}
		rec.HasAttempted = attempted
		if !attempted {
			rec.Description = appendLine(rec.Description, a.Extract.Instruction(page))
		}
	}
	rec.Description = strings.TrimSpace(rec.Description)
	return rec, nil
}

func (a *Assignments) message(rec models.AssignmentRecord) notify.Message {
	var subj, tag string
	if rec.Course == models.PersonalCourse {
		// Personal events are titled "<topic>：<detail>" by convention.
		tag = personalTag
		if head, _, ok := strings.Cut(rec.Title, subjectSep); ok {
			tag = head
		}
		subj = a.Config.TitlePrefix + rec.Title
	} else {
		tag = aliasFor(a.Alias, rec.Course)
		subj = subject(a.Config.TitlePrefix, tag, rec.Title)
	}
	body := rec.Description
	if a.Config.DisplayTime {
		body += "\n" + deadlineLabel + rec.Time
	}
	return notify.Message{Subject: subj, Body: strings.TrimSpace(body), Tag: tag}
}
