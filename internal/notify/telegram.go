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

// TelegramChannel sends notifications via the Telegram Bot API.
type TelegramChannel struct {
	cfg     config.TelegramNotifyConfig
	apiBase string
	client  *http.Client
}

// NewTelegram creates a TelegramChannel from cfg.
func NewTelegram(cfg config.TelegramNotifyConfig) *TelegramChannel {
	return &TelegramChannel{cfg: cfg, apiBase: "https://api.telegram.org", client: &http.Client{Timeout: 10 * time.Second}}
}

func (t *TelegramChannel) Name() string        { return "telegram" }
func (t *TelegramChannel) IsConfigured() bool { return t.cfg.BotToken != "" && t.cfg.ChatID != "" }

func (t *TelegramChannel) Send(ctx context.Context, msg Message) error {
	text := msg.Subject
	if msg.Body != "" {
		text += "\n\n" + msg.Body
	}
	if msg.Tag != "" {
		text += "\n#" + msg.Tag
	}
	// Telegram max message length is 4096 chars.
	if r := []rune(text); len(r) > 4096 {
		text = string(r[:4093]) + "..."
	}
	payload := map[string]any{
		"chat_id": t.cfg.ChatID,
		"text":    text,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req) // #nosec G107 -- URL is constructed from the Telegram API base + user-configured bot token
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: telegram API returned %d", ErrRejected, resp.StatusCode)
	}
	return nil
}
