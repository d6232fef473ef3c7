package mailer

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	FromName string
	From     string
}

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Sender delivers HTML mail over SMTP. Port 465 uses implicit TLS, other
// ports upgrade with STARTTLS when the server offers it.
type Sender struct {
	from   string
	dialer sender
}

func New(cfg Config) (*Sender, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		return nil, errors.New("missing SMTP settings (SMTP_HOST/SMTP_USER/SMTP_PASS)")
	}

	from := cfg.From
	if from == "" {
		from = cfg.User
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.SSL = cfg.Port == 465

	return &Sender{from: formatFrom(cfg.FromName, from), dialer: d}, nil
}

func formatFrom(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%q <%s>", name, addr)
}

func (s *Sender) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
