// Package portal talks to the Blackboard course portal behind the IAAA
// single sign-on.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/config"
	"github.com/CosmoTheDev/coursewatch/models"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"
	campusLogin    = "/webapps/bb-sso-BBLEARN/execute/authValidate/campusLogin"
	streamViewer   = "/webapps/streamViewer/streamViewer"
	calendarEvents = "/webapps/calendar/calendarData/selectedCalendarEvents"
	calendarLaunch = "/webapps/calendar/launch/attempt/"
	maxBody        = 8 << 20
)

var (
	// ErrLogin is returned when the SSO rejects the credentials or answers
	// with something other than its JSON verdict.
	ErrLogin = errors.New("portal login failed")
	// ErrMalformed is returned when a portal response does not have the
	// expected shape.
	ErrMalformed = errors.New("malformed portal response")
)

// Client holds one authenticated portal session. Requests are sequential.
type Client struct {
	baseURL  string
	iaaaURL  string
	username string
	password string
	settle   time.Duration
	limiter  *rate.Limiter
	http     *retryablehttp.Client
}

// New returns a Client configured from cfg. Call Login before fetching.
func New(cfg config.PortalConfig) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = slog.Default()
	rc.HTTPClient.Jar = jar
	rc.HTTPClient.Timeout = cfg.Timeout
	if rc.HTTPClient.Timeout <= 0 {
		rc.HTTPClient.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		iaaaURL:  strings.TrimRight(cfg.IAAAURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		settle:   cfg.StreamSettle,
		limiter:  rate.NewLimiter(limit, 1),
		http:     rc,
	}, nil
}

// Login runs the IAAA handshake and opens the portal session.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"appid":    {"blackboard"},
		"userName": {c.username},
		"password": {c.password},
		"redirUrl": {c.baseURL + campusLogin},
	}
	body, err := c.do(ctx, http.MethodPost, c.iaaaURL+"/iaaa/oauthlogin.do", form)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogin, err)
	}

	var verdict loginResponse
	if err := json.Unmarshal(body, &verdict); err != nil {
		return fmt.Errorf("%w: unexpected IAAA response: %s", ErrLogin, snippet(body))
	}
	if !verdict.Success || verdict.Token == "" {
		msg := verdict.Errors.Msg
		if msg == "" {
			msg = "check portal.username and portal.password"
		}
		return fmt.Errorf("%w: %s", ErrLogin, msg)
	}

	q := url.Values{"token": {verdict.Token}}
	if _, err := c.do(ctx, http.MethodGet, c.baseURL+campusLogin+"?"+q.Encode(), nil); err != nil {
		return fmt.Errorf("%w: campus login: %v", ErrLogin, err)
	}
	slog.Debug("Portal session opened", "user", c.username)
	return nil
}

// FetchNotices loads the alert stream. The stream viewer must be opened and
// given a moment to settle before loadStream returns the full list.
func (c *Client) FetchNotices(ctx context.Context) (*NoticeStream, error) {
	view := url.Values{"cmd": {"view"}, "streamName": {"alerts"}, "globalNavigation": {"false"}}
	if _, err := c.do(ctx, http.MethodGet, c.baseURL+streamViewer+"?"+view.Encode(), nil); err != nil {
		return nil, fmt.Errorf("opening stream viewer: %w", err)
	}

	if err := sleep(ctx, c.settle); err != nil {
		return nil, err
	}

	load := url.Values{
		"cmd":         {"loadStream"},
		"streamName":  {"alerts"},
		"providers":   {"{}"},
		"forOverview": {"false"},
	}
	body, err := c.do(ctx, http.MethodPost, c.baseURL+streamViewer, load)
	if err != nil {
		return nil, fmt.Errorf("loading notice stream: %w", err)
	}

	var stream NoticeStream
	if err := json.Unmarshal(body, &stream); err != nil {
		return nil, fmt.Errorf("%w: notice stream: %v: %s", ErrMalformed, err, snippet(body))
	}
	for i := range stream.Entries {
		if err := stream.Entries[i].validate(); err != nil {
			return nil, err
		}
	}
	return &stream, nil
}

// FetchCalendar returns the calendar events between from and to. The portal
// may return events outside the range; callers re-check end dates.
func (c *Client) FetchCalendar(ctx context.Context, from, to time.Time) ([]CalendarEntry, error) {
	q := url.Values{
		"start":     {strconv.FormatInt(from.UnixMilli(), 10)},
		"end":       {strconv.FormatInt(to.UnixMilli(), 10)},
		"course_id": {""},
		"mode":      {"personal"},
	}
	body, err := c.do(ctx, http.MethodGet, c.baseURL+calendarEvents+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("loading calendar: %w", err)
	}

	var entries []CalendarEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: calendar: %v: %s", ErrMalformed, err, snippet(body))
	}
	for i := range entries {
		if err := entries[i].validate(); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// NoticeDetail fetches the page an assignment notice links to.
func (c *Client) NoticeDetail(ctx context.Context, uri string) (string, error) {
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	return c.detail(ctx, c.baseURL+uri)
}

// CalendarDetail fetches the submission page behind a calendar entry. The
// portal redirects it to the assignment upload or review page.
func (c *Client) CalendarDetail(ctx context.Context, id models.ID) (string, error) {
	return c.detail(ctx, c.baseURL+calendarLaunch+url.PathEscape(string(id)))
}

func (c *Client) detail(ctx context.Context, target string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	body, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("fetching detail page: %w", err)
	}
	return string(body), nil
}

// do executes a request and returns the body. form, when non-nil, is sent
// url-encoded. Non-2xx responses are errors.
func (c *Client) do(ctx context.Context, method, target string, form url.Values) ([]byte, error) {
	var payload interface{}
	if form != nil {
		payload = strings.NewReader(form.Encode())
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", redact(target), err)
	}
	defer res.Body.Close() //nolint:errcheck

	b, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned %d", redact(target), res.StatusCode)
	}
	return b, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// redact drops the query string, which may carry the SSO token.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if r := []rune(s); len(r) > 200 {
		return string(r[:200]) + "..."
	}
	return s
}
