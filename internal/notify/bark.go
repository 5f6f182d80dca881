package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/config"
)

// BarkChannel pushes notifications to the Bark iOS app.
type BarkChannel struct {
	server string
	key    string
	client *http.Client
}

// NewBark creates a BarkChannel. sendKey is used when cfg.Key is empty.
func NewBark(cfg config.BarkNotifyConfig, sendKey string) *BarkChannel {
	key := cfg.Key
	if key == "" {
		key = sendKey
	}
	server := strings.TrimRight(cfg.Server, "/")
	if server == "" {
		server = "https://api.day.app"
	}
	return &BarkChannel{server: server, key: key, client: &http.Client{Timeout: 10 * time.Second}}
}

func (b *BarkChannel) Name() string        { return "bark" }
func (b *BarkChannel) IsConfigured() bool { return b.key != "" }

func (b *BarkChannel) Send(ctx context.Context, msg Message) error {
	form := url.Values{
		"title": {msg.Subject},
		"body":  {msg.Body},
		"group": {msg.Tag},
		"badge": {"1"},
	}
	var out struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := postForm(ctx, b.client, b.server+"/"+url.PathEscape(b.key), form, &out); err != nil {
		return fmt.Errorf("bark: %w", err)
	}
	if out.Code != 200 {
		return fmt.Errorf("%w: bark code %d: %s", ErrRejected, out.Code, out.Message)
	}
	return nil
}

// postForm posts form to target and decodes the JSON answer into out. An
// undecodable answer is a provider rejection.
func postForm(ctx context.Context, client *http.Client, target string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := client.Do(req) // #nosec G107 -- URL is built from the provider base and a user-configured key
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: HTTP %d, unexpected response %q", ErrRejected, resp.StatusCode, truncate(string(body), 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
