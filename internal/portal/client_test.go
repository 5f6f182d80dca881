package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/config"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := New(config.PortalConfig{
		BaseURL:  srv.URL,
		IAAAURL:  srv.URL,
		Username: "2100012345",
		Password: "secret",
		RetryMax: 0,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestLoginEstablishesSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/iaaa/oauthlogin.do", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("login method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("appid") != "blackboard" || r.PostForm.Get("userName") != "2100012345" {
			t.Errorf("unexpected login form: %v", r.PostForm)
		}
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("missing browser user agent")
		}
		fmt.Fprint(w, `{"success":true,"token":"tok123"}`)
	})
	mux.HandleFunc(campusLogin, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok123" {
			t.Errorf("campus login token = %q", r.URL.Query().Get("token"))
		}
		http.SetCookie(w, &http.Cookie{Name: "s_session_id", Value: "abc", Path: "/"})
	})
	mux.HandleFunc(calendarEvents, func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("s_session_id"); err != nil || ck.Value != "abc" {
			t.Errorf("session cookie not sent: %v", err)
		}
		fmt.Fprint(w, `[]`)
	})

	c := newTestClient(t, mux)
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := c.FetchCalendar(context.Background(), time.Now(), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("FetchCalendar: %v", err)
	}
}

func TestLoginRejected(t *testing.T) {
	cases := map[string]string{
		"bad credentials": `{"success":false,"errors":{"code":"E01","msg":"用户名或密码错误"}}`,
		"not json":        `<html>maintenance</html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/iaaa/oauthlogin.do", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			})
			c := newTestClient(t, mux)
			if err := c.Login(context.Background()); !errors.Is(err, ErrLogin) {
				t.Fatalf("expected ErrLogin, got %v", err)
			}
		})
	}
}

func TestFetchNotices(t *testing.T) {
	var viewed bool
	mux := http.NewServeMux()
	mux.HandleFunc(streamViewer, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			viewed = r.URL.Query().Get("cmd") == "view"
			return
		}
		if !viewed {
			t.Errorf("loadStream called before the viewer was opened")
		}
		_ = r.ParseForm()
		if r.PostForm.Get("cmd") != "loadStream" || r.PostForm.Get("providers") != "{}" {
			t.Errorf("unexpected loadStream form: %v", r.PostForm)
		}
		fmt.Fprint(w, `{
			"sv_streamEntries": [{
				"se_id": "_1_1", "se_timestamp": 1729180800000, "se_courseId": "_c1_1",
				"se_context": "<b>作业一</b>", "se_details": "详情",
				"se_itemUri": "/webapps/assignment/uploadAssignment?content_id=_9_1",
				"extraAttribs": {"event_type": "AS:AS_AVAIL"},
				"itemSpecificData": {"notificationDetails": {"dueDate": "2024-10-20T15:59:00.000Z"}}
			}],
			"sv_extras": {"sx_courses": [{"id": "_c1_1", "name": "操作系统(24-25学年第1学期)"}]}
		}`)
	})

	c := newTestClient(t, mux)
	stream, err := c.FetchNotices(context.Background())
	if err != nil {
		t.Fatalf("FetchNotices: %v", err)
	}
	if len(stream.Entries) != 1 {
		t.Fatalf("entries = %d", len(stream.Entries))
	}
	e := stream.Entries[0]
	if e.ID != "_1_1" || e.EventType() != "AS:AS_AVAIL" || e.Timestamp != 1729180800000 {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if due, ok := e.DueDate(); !ok || due != "2024-10-20T15:59:00.000Z" {
		t.Fatalf("DueDate() = %q, %v", due, ok)
	}
	if stream.CourseNames()["_c1_1"] != "操作系统(24-25学年第1学期)" {
		t.Fatalf("course directory = %v", stream.CourseNames())
	}
}

func TestFetchNoticesMalformed(t *testing.T) {
	cases := map[string]string{
		"html instead of json": `<html><title>登录</title></html>`,
		"entry without id":     `{"sv_streamEntries":[{"se_timestamp":1}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc(streamViewer, func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					fmt.Fprint(w, body)
				}
			})
			c := newTestClient(t, mux)
			if _, err := c.FetchNotices(context.Background()); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestFetchCalendarSendsWindow(t *testing.T) {
	from := time.UnixMilli(1729180800000)
	to := from.Add(24 * time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc(calendarEvents, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("start") != strconv.FormatInt(from.UnixMilli(), 10) || q.Get("end") != strconv.FormatInt(to.UnixMilli(), 10) {
			t.Errorf("unexpected window: %v", q)
		}
		if q.Get("mode") != "personal" {
			t.Errorf("mode = %q", q.Get("mode"))
		}
		fmt.Fprint(w, `[{"id":"_77_1","endDate":"2024-10-20T23:59:00","calendarName":"个人","title":"体检：校医院","description":""}]`)
	})

	c := newTestClient(t, mux)
	entries, err := c.FetchCalendar(context.Background(), from, to)
	if err != nil {
		t.Fatalf("FetchCalendar: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "_77_1" || entries[0].CalendarName != "个人" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestDetailPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(calendarLaunch+"_77_1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<title>上传作业</title>")
	})
	mux.HandleFunc("/webapps/assignment/uploadAssignment", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("content_id") != "_9_1" {
			t.Errorf("content_id = %q", r.URL.Query().Get("content_id"))
		}
		fmt.Fprint(w, "<title>复查提交历史记录</title>")
	})

	c := newTestClient(t, mux)
	page, err := c.CalendarDetail(context.Background(), "_77_1")
	if err != nil || page != "<title>上传作业</title>" {
		t.Fatalf("CalendarDetail = %q, %v", page, err)
	}
	page, err = c.NoticeDetail(context.Background(), "/webapps/assignment/uploadAssignment?content_id=_9_1")
	if err != nil || page != "<title>复查提交历史记录</title>" {
		t.Fatalf("NoticeDetail = %q, %v", page, err)
	}
}

func TestServerErrorIsReported(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(calendarEvents, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})
	c := newTestClient(t, mux)
	if _, err := c.FetchCalendar(context.Background(), time.Now(), time.Now()); err == nil {
		t.Fatal("expected error on 502")
	}
}
