package tui

import (
	"context"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/records"
	"github.com/CosmoTheDev/coursewatch/models"
)

// Snapshot is the content of the record store at one point in time.
type Snapshot struct {
	Store       string
	Notices     []models.NoticeRecord
	Assignments []models.AssignmentRecord
	// Bootstrap lists the classes that have no record set yet.
	Bootstrap map[models.Class]bool
	LoadedAt  time.Time
}

// LoadSnapshot reads both classes from backend.
func LoadSnapshot(ctx context.Context, backend records.Backend) (Snapshot, error) {
	snap := Snapshot{
		Store:     backend.Describe(),
		Bootstrap: make(map[models.Class]bool),
		LoadedAt:  time.Now(),
	}

	notices, ok, err := records.NewStore[models.NoticeRecord](backend, models.ClassNotice).Load(ctx)
	if err != nil {
		return snap, err
	}
	snap.Notices = notices
	snap.Bootstrap[models.ClassNotice] = !ok

	assignments, ok, err := records.NewStore[models.AssignmentRecord](backend, models.ClassAssignment).Load(ctx)
	if err != nil {
		return snap, err
	}
	snap.Assignments = assignments
	snap.Bootstrap[models.ClassAssignment] = !ok
	return snap, nil
}

// noticeRows renders notices newest first.
func noticeRows(recs []models.NoticeRecord) []row {
	rows := make([]row, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		flag := "notify"
		if !r.ShouldNotify {
			flag = "muted"
		}
		rows = append(rows, row{
			time:   r.Time,
			course: r.Course,
			title:  r.Title,
			detail: r.Content,
			flag:   flag,
		})
	}
	return rows
}

// assignmentRows renders assignments newest first.
func assignmentRows(recs []models.AssignmentRecord) []row {
	rows := make([]row, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		flag := "open"
		if r.HasAttempted {
			flag = "done"
		}
		rows = append(rows, row{
			time:   r.Time,
			course: r.Course,
			title:  r.Title,
			detail: r.Description,
			flag:   flag,
		})
	}
	return rows
}
