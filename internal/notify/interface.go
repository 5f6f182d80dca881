package notify

import (
	"context"
	"errors"
)

var (
	// ErrMisconfigured is returned for channel settings that can never work,
	// such as an unsupported email domain or a malformed send key.
	ErrMisconfigured = errors.New("notification channel misconfigured")
	// ErrRejected is returned when the provider answers with a failure.
	ErrRejected = errors.New("notification rejected by provider")
	// ErrQuotaExceeded is returned by channels whose provider reports that
	// the daily message quota is used up. The Dispatcher turns it into
	// Degraded.
	ErrQuotaExceeded = errors.New("notification quota exceeded")
)

// Message is one alert to deliver.
type Message struct {
	Subject string
	Body    string
	Tag     string // course name used for grouping; may be empty
}

// Outcome reports what happened to a Message that did not fail.
type Outcome int

const (
	// Delivered means the provider accepted the message.
	Delivered Outcome = iota
	// Degraded means the message was dropped by a quota limit and should be
	// treated as handled. Later messages in the run are skipped.
	Degraded
	// Skipped means no delivery was attempted.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Degraded:
		return "degraded"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Notifier delivers messages. A non-nil error is a hard failure that must
// abort the run.
type Notifier interface {
	Notify(ctx context.Context, msg Message) (Outcome, error)
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, msg Message) error
}

// validator is implemented by channels that can detect bad settings before
// the first send.
type validator interface {
	Validate() error
}
