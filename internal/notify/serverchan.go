package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// sc3UID extracts the user id from a ServerChan 3 send key.
var sc3UID = regexp.MustCompile(`^sctp(\d+)t`)

// The quota response of ServerChan Turbo: code 40001 with scode 471.
const (
	sctQuotaCode  = 40001
	sctQuotaSCode = 471
)

// markdownBreaks doubles newlines; desp is rendered as Markdown, where a
// single newline does not break the line.
func markdownBreaks(s string) string {
	return strings.ReplaceAll(s, "\n", "\n\n")
}

// ServerChanTurboChannel sends through ServerChan Turbo to a WeChat service
// account. Its free tier allows a handful of messages per day.
type ServerChanTurboChannel struct {
	key     string
	apiBase string
	client  *http.Client
}

// NewServerChanTurbo creates a ServerChanTurboChannel for sendKey.
func NewServerChanTurbo(sendKey string) *ServerChanTurboChannel {
	return &ServerChanTurboChannel{
		key:     sendKey,
		apiBase: "https://sctapi.ftqq.com",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *ServerChanTurboChannel) Name() string        { return "sct" }
func (s *ServerChanTurboChannel) IsConfigured() bool { return s.key != "" }

func (s *ServerChanTurboChannel) Send(ctx context.Context, msg Message) error {
	form := url.Values{
		"title":   {msg.Subject},
		"desp":    {markdownBreaks(msg.Body)},
		"noip":    {"1"},
		"channel": {"9"},
	}
	var out struct {
		Code  int    `json:"code"`
		SCode int    `json:"scode"`
		Info  string `json:"info"`
	}
	if err := postForm(ctx, s.client, s.apiBase+"/"+url.PathEscape(s.key)+".send", form, &out); err != nil {
		return fmt.Errorf("sct: %w", err)
	}
	switch {
	case out.Code == 0:
		return nil
	case out.Code == sctQuotaCode && out.SCode == sctQuotaSCode:
		return fmt.Errorf("%w: sct: %s", ErrQuotaExceeded, out.Info)
	default:
		return fmt.Errorf("%w: sct code %d: %s", ErrRejected, out.Code, out.Info)
	}
}

// ServerChan3Channel sends through ServerChan 3. The endpoint host is
// derived from the uid embedded in the send key.
type ServerChan3Channel struct {
	key     string
	apiBase func(uid string) string
	client  *http.Client
}

// NewServerChan3 creates a ServerChan3Channel for sendKey.
func NewServerChan3(sendKey string) *ServerChan3Channel {
	return &ServerChan3Channel{
		key:     sendKey,
		apiBase: func(uid string) string { return "https://" + uid + ".push.ft07.com" },
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *ServerChan3Channel) Name() string        { return "sc3" }
func (s *ServerChan3Channel) IsConfigured() bool { return s.key != "" }

// Validate checks the send key format.
func (s *ServerChan3Channel) Validate() error {
	_, err := s.uid()
	return err
}

func (s *ServerChan3Channel) uid() (string, error) {
	m := sc3UID.FindStringSubmatch(s.key)
	if m == nil {
		return "", fmt.Errorf("%w: sc3 send key must look like sctp<number>t...", ErrMisconfigured)
	}
	return m[1], nil
}

func (s *ServerChan3Channel) Send(ctx context.Context, msg Message) error {
	uid, err := s.uid()
	if err != nil {
		return err
	}
	form := url.Values{
		"title": {msg.Subject},
		"desp":  {markdownBreaks(msg.Body)},
		"short": {msg.Body},
		"tags":  {msg.Tag},
	}
	var out struct {
		Code  int    `json:"code"`
		Error string `json:"error"`
	}
	target := s.apiBase(uid) + "/send/" + url.PathEscape(s.key) + ".send"
	if err := postForm(ctx, s.client, target, form, &out); err != nil {
		return fmt.Errorf("sc3: %w", err)
	}
	if out.Code != 0 {
		return fmt.Errorf("%w: sc3 code %d: %s", ErrRejected, out.Code, out.Error)
	}
	return nil
}
