package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CosmoTheDev/coursewatch/internal/config"
)

// Dispatcher sends every message through the one channel selected by
// notify.method.
type Dispatcher struct {
	channel Channel
}

// New selects and checks the channel named by cfg.Method.
func New(cfg config.NotifyConfig) (*Dispatcher, error) {
	var ch Channel
	switch cfg.Method {
	case "email":
		ch = NewEmail(cfg.Email)
	case "bark":
		ch = NewBark(cfg.Bark, cfg.SendKey)
	case "sct":
		ch = NewServerChanTurbo(cfg.SendKey)
	case "sc3":
		ch = NewServerChan3(cfg.SendKey)
	case "telegram":
		ch = NewTelegram(cfg.Telegram)
	case "slack":
		ch = NewSlack(cfg.Slack)
	case "webhook":
		ch = NewWebhook(cfg.Webhook)
	default:
		return nil, fmt.Errorf("%w: notify.method must be one of %s (got %q)",
			ErrMisconfigured, strings.Join(config.Methods, ", "), cfg.Method)
	}
	return NewDispatcher(ch)
}

// NewDispatcher wraps ch after checking that it is usable.
func NewDispatcher(ch Channel) (*Dispatcher, error) {
	if !ch.IsConfigured() {
		return nil, fmt.Errorf("%w: %s channel is missing credentials", ErrMisconfigured, ch.Name())
	}
	if v, ok := ch.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return &Dispatcher{channel: ch}, nil
}

// Channel returns the name of the active channel.
func (d *Dispatcher) Channel() string { return d.channel.Name() }

// Notify makes exactly one delivery attempt.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) (Outcome, error) {
	err := d.channel.Send(ctx, msg)
	switch {
	case err == nil:
		slog.Info("Notification sent", "channel", d.channel.Name(), "subject", msg.Subject)
		return Delivered, nil
	case errors.Is(err, ErrQuotaExceeded):
		slog.Warn("Notification quota exceeded, continuing without delivery",
			"channel", d.channel.Name(), "subject", msg.Subject, "error", err)
		return Degraded, nil
	default:
		return Skipped, fmt.Errorf("%s notify %q: %w", d.channel.Name(), msg.Subject, err)
	}
}

// LogNotifier logs messages instead of sending them. Used for dry runs.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, msg Message) (Outcome, error) {
	slog.Info("Dry run: notification not sent", "subject", msg.Subject, "tag", msg.Tag, "body", msg.Body)
	return Skipped, nil
}
