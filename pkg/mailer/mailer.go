package mailer

import (
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender is the capability the notification service needs.
type Sender interface {
	Send(to, subject, body string) error
}

type Mailer struct {
	cfg    Config
	dialer *gomail.Dialer
}

func New(cfg Config) *Mailer {
	return &Mailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send delivers a plain-text message.
func (m *Mailer) Send(to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("mailer: empty recipient")
	}
	from := m.cfg.From
	if strings.TrimSpace(from) == "" {
		from = m.cfg.Username
	}

	if err := m.dialer.DialAndSend(buildMessage(from, to, subject, body)); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}
