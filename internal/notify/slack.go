package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/config"
)

// SlackChannel sends notifications to a Slack incoming webhook URL.
type SlackChannel struct {
	cfg    config.SlackNotifyConfig
	client *http.Client
}

// NewSlack creates a SlackChannel from cfg.
func NewSlack(cfg config.SlackNotifyConfig) *SlackChannel {
	return &SlackChannel{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *SlackChannel) Name() string        { return "slack" }
func (s *SlackChannel) IsConfigured() bool { return s.cfg.WebhookURL != "" }

func (s *SlackChannel) Send(ctx context.Context, msg Message) error {
	attachment := map[string]any{
		"color":  tagColor(msg.Tag),
		"title":  msg.Subject,
		"text":   msg.Body,
		"footer": "coursewatch",
		"ts":     time.Now().Unix(),
	}
	if msg.Tag != "" {
		attachment["author_name"] = msg.Tag
	}
	payload := map[string]any{
		"text":        msg.Subject,
		"attachments": []map[string]any{attachment},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req) // #nosec G107 -- WebhookURL is a user-configured Slack incoming webhook URL
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: slack webhook returned %d", ErrRejected, resp.StatusCode)
	}
	return nil
}

// tagColor gives each course a stable attachment color.
func tagColor(tag string) string {
	palette := []string{"#0099FF", "#FF6600", "#33AA55", "#AA44CC", "#FFAA00", "#888888"}
	if tag == "" {
		return palette[len(palette)-1]
	}
	var h uint32
	for _, r := range tag {
		h = h*31 + uint32(r)
	}
	return palette[h%uint32(len(palette)-1)]
}
