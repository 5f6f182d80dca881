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

// Notices reconciles the portal's notice stream.
type Notices struct {
	Config   config.NoticeConfig
	Alias    map[string]string
	Source   NoticeSource
	Extract  Extractor
	Notifier notify.Notifier
	Store    RecordStore[models.NoticeRecord]
	Location *time.Location
}

// Run performs one reconciliation. degraded carries the channel state of
// earlier classes in the same invocation.
func (n *Notices) Run(ctx context.Context, degraded bool) (Result, error) {
	res := Result{Class: models.ClassNotice, Degraded: degraded}

	stream, err := n.Source.FetchNotices(ctx)
	if err != nil {
		return res, fmt.Errorf("fetching notices: %w", err)
	}
	courses := make(map[string]string)
	for id, name := range stream.CourseNames() {
		courses[id] = extract.StripSemester(name)
	}

	prior, exists, err := n.Store.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("loading notice records: %w", err)
	}
	res.Bootstrap = !exists
	known := models.IDSet(prior)

	var fresh []models.NoticeRecord
	for i := range stream.Entries {
		entry := &stream.Entries[i]
		if _, ok := known[entry.ID]; ok {
			res.Known++
			continue
		}
		rec, err := n.normalize(ctx, entry, courses, res.Bootstrap)
		if err != nil {
			return res, fmt.Errorf("notice %s: %w", entry.ID, err)
		}
		known[rec.ID] = struct{}{}
		fresh = append(fresh, rec)
	}
	res.New = len(fresh)

	if res.Bootstrap {
		msg := notify.Message{
			Subject: bootstrapHead + "通知提醒模块首次运行成功！",
			Body:    fmt.Sprintf("初始化已完成，从教学网同步了 %d 条已有通知。之后就可以自动检测新的通知并提醒您了~", len(fresh)),
		}
		if err := res.deliver(ctx, n.Notifier, msg); err != nil {
			return res, err
		}
	} else {
		for _, rec := range fresh {
			if !rec.ShouldNotify {
				res.Ignored++
				slog.Info("Notice ignored", "title", rec.Title, "course", rec.Course, "event", rec.Event)
				continue
			}
			if err := res.deliver(ctx, n.Notifier, n.message(rec)); err != nil {
				return res, err
			}
		}
	}

	if res.Bootstrap || len(fresh) > 0 {
		if err := n.Store.Save(ctx, append(prior, fresh...)); err != nil {
			return res, err
		}
		res.Saved = true
	}
	slog.Info("Notices processed", "new", res.New, "known", res.Known, "bootstrap", res.Bootstrap)
	return res, nil
}

func (n *Notices) normalize(ctx context.Context, e *portal.NoticeEntry, courses map[string]string, bootstrap bool) (models.NoticeRecord, error) {
	rec := models.NoticeRecord{
		ID:      e.ID,
		Time:    extract.FormatMillis(e.Timestamp, n.Location),
		Course:  courses[e.CourseID],
		Title:   n.Extract.Title(e.Context),
		Content: n.Extract.Body(e.Details),
		Event:   e.EventType(),
	}
	rec.ShouldNotify = n.eligible(rec.Course, rec.Event)

	// Bootstrap records are never notified, so their pages are not fetched.
	if rec.Event == models.EventAssignmentAvailable && e.ItemURI != "" && rec.ShouldNotify && !bootstrap {
		page, err := n.Source.NoticeDetail(ctx, e.ItemURI)
		if err != nil {
			return rec, err
		}
		rec.Content = appendLine(rec.Content, n.Extract.Instruction(page))
		if due, ok := e.DueDate(); ok {
			formatted, err := extract.FormatTimestamp(due, n.Location)
			if err != nil {
				return rec, fmt.Errorf("%w: due date: %v", portal.ErrMalformed, err)
			}
			rec.Content = appendLine(rec.Content, deadlineLabel+formatted)
		}
	}
	rec.Content = strings.TrimSpace(rec.Content)
	return rec, nil
}

// eligible applies the blocked-course list and the category filter. A
// per-course allowed-events entry replaces the default.
func (n *Notices) eligible(course, event string) bool {
	key := strings.ToLower(course)
	for _, blocked := range n.Config.BlockedCourses {
		if key == blocked {
			return false
		}
	}
	allowed := n.Config.AllowedEvents
	if override, ok := n.Config.CourseEvents[key]; ok {
		allowed = override
	}
	return strings.Contains(allowed, models.CategoryOf(event).Digit())
}

func (n *Notices) message(rec models.NoticeRecord) notify.Message {
	course := aliasFor(n.Alias, rec.Course)
	body := rec.Content
	if n.Config.DisplayTime {
		body += "\n" + publishLabel + rec.Time
	}
	return notify.Message{
		Subject: subject(n.Config.TitlePrefix, course, rec.Title),
		Body:    strings.TrimSpace(body),
		Tag:     course,
	}
}
