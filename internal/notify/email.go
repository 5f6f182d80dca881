package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/CosmoTheDev/coursewatch/internal/config"
	"gopkg.in/gomail.v2"
)

// smtpHosts maps mailbox domains to their implicit-TLS SMTP host.
var smtpHosts = map[string]string{
	"stu.pku.edu.cn": "smtphz.qiye.163.com",
	"pku.edu.cn":     "smtp.pku.edu.cn",
	"qq.com":         "smtp.qq.com",
	"163.com":        "smtp.163.com",
	"126.com":        "smtp.126.com",
}

// EmailChannel mails each notification to the configured address itself.
type EmailChannel struct {
	cfg  config.EmailNotifyConfig
	dial func(host string, port int) (gomail.SendCloser, error)
}

// NewEmail creates an EmailChannel from cfg.
func NewEmail(cfg config.EmailNotifyConfig) *EmailChannel {
	e := &EmailChannel{cfg: cfg}
	e.dial = func(host string, port int) (gomail.SendCloser, error) {
		return gomail.NewDialer(host, port, e.cfg.Address, e.cfg.Password).Dial()
	}
	return e
}

func (e *EmailChannel) Name() string { return "email" }
func (e *EmailChannel) IsConfigured() bool {
	return e.cfg.Address != "" && e.cfg.Password != ""
}

// Validate checks that an SMTP host is known for the address.
func (e *EmailChannel) Validate() error {
	_, err := e.host()
	return err
}

func (e *EmailChannel) host() (string, error) {
	if e.cfg.SMTPHost != "" {
		return e.cfg.SMTPHost, nil
	}
	domain := strings.ToLower(e.cfg.Address[strings.LastIndex(e.cfg.Address, "@")+1:])
	if host, ok := smtpHosts[domain]; ok {
		return host, nil
	}
	return "", fmt.Errorf("%w: no SMTP host known for @%s; use one of @stu.pku.edu.cn, @pku.edu.cn, @qq.com, @163.com, @126.com or set notify.email.smtp_host",
		ErrMisconfigured, domain)
}

func (e *EmailChannel) Send(_ context.Context, msg Message) error {
	host, err := e.host()
	if err != nil {
		return err
	}
	port := e.cfg.SMTPPort
	if port == 0 {
		port = 465
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", e.cfg.Address, e.cfg.Sender)
	m.SetHeader("To", e.cfg.Address)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	s, err := e.dial(host, port)
	if err != nil {
		return fmt.Errorf("%w: email login to %s:%d: %v", ErrRejected, host, port, err)
	}
	defer s.Close() //nolint:errcheck
	if err := gomail.Send(s, m); err != nil {
		return fmt.Errorf("%w: email send: %v", ErrRejected, err)
	}
	return nil
}
