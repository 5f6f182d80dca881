package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/config"
	"github.com/CosmoTheDev/coursewatch/internal/extract"
	"github.com/CosmoTheDev/coursewatch/internal/notify"
	"github.com/CosmoTheDev/coursewatch/internal/portal"
	"github.com/CosmoTheDev/coursewatch/models"
)

// ---- fakes ----

type memStore[T models.Record] struct {
	recs   []T
	exists bool
	saves  int
}

func (m *memStore[T]) Load(context.Context) ([]T, bool, error) {
	return append([]T(nil), m.recs...), m.exists, nil
}

func (m *memStore[T]) Save(_ context.Context, recs []T) error {
	m.recs = append([]T(nil), recs...)
	m.exists = true
	m.saves++
	return nil
}

type fakeNotifier struct {
	sent []notify.Message
	// script holds the outcome of each call in order; missing entries are
	// Delivered.
	script []notify.Outcome
	fail   error
}

func (f *fakeNotifier) Notify(_ context.Context, msg notify.Message) (notify.Outcome, error) {
	if f.fail != nil {
		return notify.Skipped, f.fail
	}
	i := len(f.sent)
	f.sent = append(f.sent, msg)
	if i < len(f.script) {
		return f.script[i], nil
	}
	return notify.Delivered, nil
}

type fakePortal struct {
	stream      portal.NoticeStream
	calendar    []portal.CalendarEntry
	pages       map[string]string
	detailCalls []string
	from, to    time.Time
}

func (p *fakePortal) FetchNotices(context.Context) (*portal.NoticeStream, error) {
	s := p.stream
	return &s, nil
}

func (p *fakePortal) NoticeDetail(_ context.Context, uri string) (string, error) {
	p.detailCalls = append(p.detailCalls, uri)
	return p.pages[uri], nil
}

func (p *fakePortal) FetchCalendar(_ context.Context, from, to time.Time) ([]portal.CalendarEntry, error) {
	p.from, p.to = from, to
	return p.calendar, nil
}

func (p *fakePortal) CalendarDetail(_ context.Context, id models.ID) (string, error) {
	p.detailCalls = append(p.detailCalls, string(id))
	page, ok := p.pages[string(id)]
	if !ok {
		return "<html><head><title>上传作业</title></head></html>", nil
	}
	return page, nil
}

func shanghai(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func noticeEntry(id, course, event string) portal.NoticeEntry {
	var e portal.NoticeEntry
	e.ID = models.ID(id)
	e.Timestamp = 1729180800000
	e.CourseID = course
	e.Context = "<span class=\"announcementType\">公告</span>标题" + id
	e.Details = "<p>内容" + id + "</p>"
	e.ExtraAttribs.EventType = event
	return e
}

func newNotices(t *testing.T, p *fakePortal, store *memStore[models.NoticeRecord], n *fakeNotifier) *Notices {
	p.stream.Extras.Courses = []portal.Course{
		{ID: "c1", Name: "操作系统(24-25学年第1学期)"},
		{ID: "c2", Name: "Linear Algebra(24-25学年第1学期)"},
	}
	return &Notices{
		Config: config.NoticeConfig{
			TitlePrefix:   "[教学网] ",
			DisplayTime:   true,
			AllowedEvents: "123",
		},
		Alias:    map[string]string{"linear algebra": "线代"},
		Source:   p,
		Extract:  extract.HTML{},
		Notifier: n,
		Store:    store,
		Location: shanghai(t),
	}
}

// ---- notices ----

func TestNoticeBootstrapSendsOneMessage(t *testing.T) {
	p := &fakePortal{}
	p.stream.Entries = []portal.NoticeEntry{
		noticeEntry("_1_1", "c1", "AS:AS_AVAIL"),
		noticeEntry("_2_1", "c1", "CO:CO_AVAIL"),
		noticeEntry("_3_1", "c2", "GB:GB_AVAIL"),
	}
	p.stream.Entries[0].ItemURI = "/webapps/assignment/uploadAssignment?content_id=_9_1"
	store := &memStore[models.NoticeRecord]{}
	n := &fakeNotifier{}

	res, err := newNotices(t, p, store, n).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Bootstrap || !res.Saved || res.New != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(n.sent) != 1 || !strings.Contains(n.sent[0].Subject, "通知提醒模块首次运行成功") {
		t.Fatalf("expected exactly one init message, got %+v", n.sent)
	}
	if !strings.Contains(n.sent[0].Body, "3 条") {
		t.Fatalf("init message should report the synced count: %q", n.sent[0].Body)
	}
	if len(store.recs) != 3 {
		t.Fatalf("expected all 3 records saved, got %d", len(store.recs))
	}
	if len(p.detailCalls) != 0 {
		t.Fatalf("bootstrap must not fetch detail pages, fetched %v", p.detailCalls)
	}
}

func TestNoticeIdempotentRerun(t *testing.T) {
	p := &fakePortal{}
	p.stream.Entries = []portal.NoticeEntry{noticeEntry("_1_1", "c1", "CO:CO_AVAIL")}
	store := &memStore[models.NoticeRecord]{}
	n := &fakeNotifier{}
	r := newNotices(t, p, store, n)

	if _, err := r.Run(context.Background(), false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	saved := append([]models.NoticeRecord(nil), store.recs...)
	sentBefore, savesBefore := len(n.sent), store.saves

	res, err := r.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Bootstrap || res.New != 0 || res.Known != 1 || res.Saved {
		t.Fatalf("unexpected second result: %+v", res)
	}
	if len(n.sent) != sentBefore || store.saves != savesBefore {
		t.Fatalf("second run notified or saved: sent %d->%d saves %d->%d", sentBefore, len(n.sent), savesBefore, store.saves)
	}
	if len(store.recs) != len(saved) || store.recs[0] != saved[0] {
		t.Fatalf("record changed: %+v", store.recs)
	}
}

func TestNoticeKnownIDsAreNeverRefetched(t *testing.T) {
	p := &fakePortal{pages: map[string]string{}}
	e := noticeEntry("_1_1", "c1", "AS:AS_AVAIL")
	e.ItemURI = "/upload?x=1"
	p.stream.Entries = []portal.NoticeEntry{e}
	store := &memStore[models.NoticeRecord]{
		exists: true,
		recs:   []models.NoticeRecord{{ID: "_1_1", Title: "old", ShouldNotify: false}},
	}
	n := &fakeNotifier{}

	res, err := newNotices(t, p, store, n).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.New != 0 || len(n.sent) != 0 || len(p.detailCalls) != 0 {
		t.Fatalf("known id was reprocessed: res=%+v sent=%v fetched=%v", res, n.sent, p.detailCalls)
	}
	if store.recs[0].Title != "old" {
		t.Fatalf("known record was rewritten: %+v", store.recs[0])
	}
}

func TestNoticeEligibilityGating(t *testing.T) {
	p := &fakePortal{}
	p.stream.Entries = []portal.NoticeEntry{
		noticeEntry("_1_1", "c1", "AS:AS_AVAIL"),
		noticeEntry("_2_1", "c1", "CO:CO_AVAIL"),
	}
	store := &memStore[models.NoticeRecord]{exists: true}
	n := &fakeNotifier{}
	r := newNotices(t, p, store, n)
	r.Config.AllowedEvents = "1"

	res, err := r.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(n.sent) != 1 || !strings.Contains(n.sent[0].Subject, "标题_1_1") {
		t.Fatalf("expected only the assignment notice, got %+v", n.sent)
	}
	if res.Ignored != 1 || len(store.recs) != 2 {
		t.Fatalf("ineligible notice must still be saved: res=%+v recs=%d", res, len(store.recs))
	}
	if store.recs[1].ShouldNotify {
		t.Fatalf("content notice marked eligible: %+v", store.recs[1])
	}
}

func TestNoticeCourseOverrideAndBlockList(t *testing.T) {
	p := &fakePortal{}
	p.stream.Entries = []portal.NoticeEntry{
		noticeEntry("_1_1", "c1", "CO:CO_AVAIL"),
		noticeEntry("_2_1", "c2", "CO:CO_AVAIL"),
	}
	store := &memStore[models.NoticeRecord]{exists: true}
	n := &fakeNotifier{}
	r := newNotices(t, p, store, n)
	r.Config.AllowedEvents = "1"
	r.Config.CourseEvents = map[string]string{"linear algebra": "2"}
	r.Config.BlockedCourses = []string{"操作系统"}

	if _, err := r.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(n.sent) != 1 {
		t.Fatalf("expected one notification, got %+v", n.sent)
	}
	got := n.sent[0]
	if got.Subject != "[教学网] 线代：标题_2_1" || got.Tag != "线代" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if got.Body != "内容_2_1\n发布时间：2024-10-18 00:00:00" {
		t.Fatalf("unexpected body: %q", got.Body)
	}
}

func TestNoticeAssignmentDetailsAppended(t *testing.T) {
	uri := "/webapps/assignment/uploadAssignment?content_id=_9_1"
	p := &fakePortal{pages: map[string]string{
		uri: `<html><body><div id="instructions"><p>完成习题</p></div></body></html>`,
	}}
	e := noticeEntry("_1_1", "c1", "AS:AS_AVAIL")
	e.ItemURI = uri
	due := "2024-10-20T15:59:00.000Z"
	e.ItemSpecificData.NotificationDetails.DueDate = &due
	p.stream.Entries = []portal.NoticeEntry{e}
	store := &memStore[models.NoticeRecord]{exists: true}
	n := &fakeNotifier{}
	r := newNotices(t, p, store, n)
	r.Config.DisplayTime = false

	if _, err := r.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "内容_1_1\n完成习题\n截止时间：2024-10-20 23:59:00"
	if store.recs[0].Content != want {
		t.Fatalf("content = %q, want %q", store.recs[0].Content, want)
	}
	if len(n.sent) != 1 || n.sent[0].Body != want {
		t.Fatalf("unexpected notification: %+v", n.sent)
	}
}

func TestNoticeSoftDegradation(t *testing.T) {
	p := &fakePortal{}
	for _, id := range []string{"_1_1", "_2_1", "_3_1", "_4_1", "_5_1"} {
		p.stream.Entries = append(p.stream.Entries, noticeEntry(id, "c1", "AS:AS_AVAIL"))
	}
	store := &memStore[models.NoticeRecord]{exists: true}
	n := &fakeNotifier{script: []notify.Outcome{notify.Delivered, notify.Delivered, notify.Degraded}}

	res, err := newNotices(t, p, store, n).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("degraded run must succeed: %v", err)
	}
	if len(n.sent) != 3 {
		t.Fatalf("notices after the degraded one must not be attempted, attempted %d", len(n.sent))
	}
	if !res.Degraded || res.Notified != 2 || res.Skipped != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(store.recs) != 5 || !res.Saved {
		t.Fatalf("all five records must be saved, got %d", len(store.recs))
	}
}

func TestNoticeHardFailureSavesNothing(t *testing.T) {
	p := &fakePortal{}
	p.stream.Entries = []portal.NoticeEntry{noticeEntry("_1_1", "c1", "AS:AS_AVAIL")}
	store := &memStore[models.NoticeRecord]{exists: true}
	boom := errors.New("provider down")
	n := &fakeNotifier{fail: boom}

	if _, err := newNotices(t, p, store, n).Run(context.Background(), false); !errors.Is(err, boom) {
		t.Fatalf("expected notify error, got %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("record saved after hard failure")
	}
}

func TestNoticeDegradedFromEarlierClass(t *testing.T) {
	p := &fakePortal{}
	p.stream.Entries = []portal.NoticeEntry{noticeEntry("_1_1", "c1", "AS:AS_AVAIL")}
	store := &memStore[models.NoticeRecord]{exists: true}
	n := &fakeNotifier{}

	res, err := newNotices(t, p, store, n).Run(context.Background(), true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(n.sent) != 0 || res.Skipped != 1 || !res.Degraded || len(store.recs) != 1 {
		t.Fatalf("degraded input not honoured: res=%+v sent=%v", res, n.sent)
	}
}

// ---- assignments ----

func newAssignments(t *testing.T, p *fakePortal, store *memStore[models.AssignmentRecord], n *fakeNotifier, now time.Time) *Assignments {
	return &Assignments{
		Config: config.AssignmentConfig{
			TitlePrefix:  "",
			DisplayTime:  true,
			AdvanceHours: 3,
		},
		Alias:    map[string]string{"操作系统": "OS"},
		Source:   p,
		Extract:  extract.HTML{},
		Notifier: n,
		Store:    store,
		Location: now.Location(),
		Now:      func() time.Time { return now },
	}
}

func calendarEntry(id, course, title string, due time.Time) portal.CalendarEntry {
	return portal.CalendarEntry{
		ID:           models.ID(id),
		EndDate:      due.Format("2006-01-02T15:04:05"),
		CalendarName: course,
		Title:        title,
	}
}

func TestAssignmentWindow(t *testing.T) {
	now := time.Date(2024, 10, 20, 12, 0, 0, 0, shanghai(t))
	p := &fakePortal{calendar: []portal.CalendarEntry{
		calendarEntry("_far_1", "操作系统(24-25学年第1学期)", "作业二", now.Add(5*time.Hour)),
		calendarEntry("_past_1", "操作系统(24-25学年第1学期)", "作业一", now.Add(-time.Hour)),
	}}
	store := &memStore[models.AssignmentRecord]{exists: true}
	n := &fakeNotifier{}

	res, err := newAssignments(t, p, store, n, now).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !p.from.Equal(now.Add(-3*time.Hour)) || !p.to.Equal(now.Add(3*time.Hour)) {
		t.Fatalf("queried window [%v, %v]", p.from, p.to)
	}
	if res.New != 1 || len(store.recs) != 1 || store.recs[0].ID != "_past_1" {
		t.Fatalf("expected only the past-due entry, got res=%+v recs=%+v", res, store.recs)
	}
	if len(n.sent) != 1 {
		t.Fatalf("expected the past-due entry to be notified, got %+v", n.sent)
	}
	want := "OS：作业一"
	if n.sent[0].Subject != want || n.sent[0].Tag != "OS" {
		t.Fatalf("message = %+v, want subject %q", n.sent[0], want)
	}
	if n.sent[0].Body != "截止时间：2024-10-20 11:00:00" {
		t.Fatalf("body = %q", n.sent[0].Body)
	}
}

func TestAssignmentPersonalEventSkipsDetailFetch(t *testing.T) {
	now := time.Date(2024, 10, 20, 12, 0, 0, 0, shanghai(t))
	p := &fakePortal{calendar: []portal.CalendarEntry{
		calendarEntry("_p1_1", "个人", "体检：校医院二楼", now.Add(time.Hour)),
		calendarEntry("_p2_1", "个人", "组会", now.Add(2*time.Hour)),
	}}
	store := &memStore[models.AssignmentRecord]{exists: true}
	n := &fakeNotifier{}
	r := newAssignments(t, p, store, n, now)
	r.Config.TitlePrefix = "⏰ "

	if _, err := r.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(p.detailCalls) != 0 {
		t.Fatalf("personal events must not fetch detail pages: %v", p.detailCalls)
	}
	if len(n.sent) != 2 {
		t.Fatalf("both personal events must notify, got %+v", n.sent)
	}
	if n.sent[0].Subject != "⏰ 体检：校医院二楼" || n.sent[0].Tag != "体检" {
		t.Fatalf("first message = %+v", n.sent[0])
	}
	if n.sent[1].Tag != "个人事件" {
		t.Fatalf("second message tag = %q", n.sent[1].Tag)
	}
}

func TestAssignmentSubmittedIsRecordedNotNotified(t *testing.T) {
	now := time.Date(2024, 10, 20, 12, 0, 0, 0, shanghai(t))
	p := &fakePortal{
		calendar: []portal.CalendarEntry{
			calendarEntry("_done_1", "操作系统(24-25学年第1学期)", "作业一", now.Add(time.Hour)),
			calendarEntry("_todo_1", "操作系统(24-25学年第1学期)", "作业二", now.Add(2*time.Hour)),
		},
		pages: map[string]string{
			"_done_1": `<html><head><title>复查提交历史记录: 作业一</title></head></html>`,
			"_todo_1": `<html><head><title>上传作业: 作业二</title></head><body><div id="instructions">提交 PDF</div></body></html>`,
		},
	}
	store := &memStore[models.AssignmentRecord]{exists: true}
	n := &fakeNotifier{}

	res, err := newAssignments(t, p, store, n, now).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Ignored != 1 || len(n.sent) != 1 || len(store.recs) != 2 {
		t.Fatalf("unexpected outcome: res=%+v sent=%+v", res, n.sent)
	}
	if !store.recs[0].HasAttempted || store.recs[1].HasAttempted {
		t.Fatalf("attempt flags wrong: %+v", store.recs)
	}
	if store.recs[1].Description != "提交 PDF" {
		t.Fatalf("instruction not appended: %q", store.recs[1].Description)
	}
}

func TestAssignmentBootstrap(t *testing.T) {
	now := time.Date(2024, 10, 20, 12, 0, 0, 0, shanghai(t))
	p := &fakePortal{calendar: []portal.CalendarEntry{
		calendarEntry("_p1_1", "个人", "体检", now.Add(time.Hour)),
		calendarEntry("_a1_1", "操作系统", "作业一", now.Add(time.Hour)),
	}}
	store := &memStore[models.AssignmentRecord]{}
	n := &fakeNotifier{}

	res, err := newAssignments(t, p, store, n, now).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Bootstrap || len(n.sent) != 1 || !strings.Contains(n.sent[0].Subject, "日程提醒模块首次运行成功") {
		t.Fatalf("expected one init message, got %+v", n.sent)
	}
	if len(store.recs) != 2 {
		t.Fatalf("bootstrap must record every entry, got %d", len(store.recs))
	}
}

func TestAssignmentBootstrapWithNoEntriesStillSaves(t *testing.T) {
	now := time.Now()
	store := &memStore[models.AssignmentRecord]{}
	n := &fakeNotifier{}

	res, err := newAssignments(t, &fakePortal{}, store, n, now).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Saved || !store.exists {
		t.Fatalf("empty bootstrap must still create the record set")
	}
}

func TestAssignmentRejectsNonPositiveAdvance(t *testing.T) {
	now := time.Now()
	p := &fakePortal{}
	r := newAssignments(t, p, &memStore[models.AssignmentRecord]{}, &fakeNotifier{}, now)
	r.Config.AdvanceHours = 0
	if _, err := r.Run(context.Background(), false); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected config.ErrInvalid, got %v", err)
	}
	if !p.to.IsZero() {
		t.Fatal("calendar fetched despite invalid config")
	}
}

func TestAssignmentMalformedDetailPageAborts(t *testing.T) {
	now := time.Date(2024, 10, 20, 12, 0, 0, 0, shanghai(t))
	p := &fakePortal{
		calendar: []portal.CalendarEntry{calendarEntry("_a1_1", "操作系统", "作业一", now.Add(time.Hour))},
		pages:    map[string]string{"_a1_1": `<html><body>请登录</body></html>`},
	}
	store := &memStore[models.AssignmentRecord]{exists: true}

	_, err := newAssignments(t, p, store, &fakeNotifier{}, now).Run(context.Background(), false)
	if !errors.Is(err, portal.ErrMalformed) {
		t.Fatalf("expected portal.ErrMalformed, got %v", err)
	}
	if store.saves != 0 {
		t.Fatal("partial batch was saved")
	}
}
