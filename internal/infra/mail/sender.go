package mail

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/richdadretirement/leadrelay/internal/notification"
)

var ErrNotConfigured = errors.New("smtp not configured")

// EmailSender delivers notifications over SMTP as the "smtp" channel. It runs
// alongside the Resend channel; each is enabled by its own settings.
type EmailSender struct {
	cfg    SMTPConfig
	dialer dialer
}

func NewEmailSender(cfg SMTPConfig) *EmailSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &EmailSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

func (s *EmailSender) Name() string { return "smtp" }

func (s *EmailSender) Enabled() bool {
	return s.cfg.Host != "" && s.cfg.From != "" && s.cfg.To != ""
}

func (s *EmailSender) Send(ctx context.Context, msg notification.Message) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := s.buildMessage(msg)

	// gomail has no context support; run the dial in the background and stop
	// waiting when ctx is done.
	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *EmailSender) buildMessage(msg notification.Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Urgent {
		m.SetHeader("X-Priority", "1")
	}
	m.SetBody("text/html", msg.HTML)
	return m
}
